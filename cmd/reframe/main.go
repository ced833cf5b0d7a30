package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apiclient "github.com/reframedb/reframe/pkg/api/client"
	"golang.org/x/term"
)

const defaultAPIBaseURL = "http://localhost:5000"

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
	AuthToken  string `json:"auth_token"`
}

var (
	buildVersion = "dev"

	stdout io.Writer = os.Stdout
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "register":
		return commandRegister(args)
	case "login":
		return commandLogin(args)
	case "status":
		return commandStatus(args)
	case "logout":
		return commandLogout(args)
	case "assay":
		return commandAssay(args)
	case "drug":
		return commandDrug(args)
	case "version", "--version", "-v":
		printVersion()
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	captcha := fs.String("captcha", "", "reCAPTCHA response token")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBaseURL+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return authenticate(*email, *password, *apiBase, func(ctx context.Context, c *apiclient.Client, email, secret string) (apiclient.AuthResponse, error) {
		return c.Register(ctx, email, secret, *captcha)
	}, "registration successful")
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBaseURL+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return authenticate(*email, *password, *apiBase, func(ctx context.Context, c *apiclient.Client, email, secret string) (apiclient.AuthResponse, error) {
		return c.Login(ctx, email, secret)
	}, "login successful")
}

type authFunc func(ctx context.Context, c *apiclient.Client, email, secret string) (apiclient.AuthResponse, error)

// authenticate runs a credential exchange and stores the returned token.
func authenticate(email, password, apiBase string, exchange authFunc, done string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("--email is required")
	}
	secret := strings.TrimSpace(password)
	if secret == "" {
		fmt.Fprint(stdout, "Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprint(stdout, "\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := exchange(ctx, client, email, secret)
	if err != nil {
		return err
	}
	cfg.AuthToken = resp.AuthToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(stdout, done)
	return nil
}

func commandStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status, err := client.Status(ctx, cfg.AuthToken)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%s\tadmin=%t\tregistered %s\n", status.UserID, status.Email, status.Admin, status.RegisteredOn)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Logout(ctx, cfg.AuthToken); err != nil {
		return err
	}
	cfg.AuthToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "logged out")
	return nil
}

func commandAssay(args []string) error {
	fs := flag.NewFlagSet("assay", flag.ContinueOnError)
	qid := fs.String("qid", "", "Wikidata item identifier")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*qid) == "" {
		return errors.New("--qid is required")
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := client.AssayData(ctx, cfg.AuthToken, *qid)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(records)
	}
	for _, rec := range records {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", rec.ActivityType, formatFloat(rec.AC50), deref(rec.AssayTitle), deref(rec.CalibrID))
	}
	return nil
}

func commandDrug(args []string) error {
	fs := flag.NewFlagSet("drug", flag.ContinueOnError)
	qid := fs.String("qid", "", "Wikidata item identifier")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*qid) == "" {
		return errors.New("--qid is required")
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profiles, err := client.DrugProfiles(ctx, cfg.AuthToken, *qid)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(profiles)
	}
	for _, p := range profiles {
		fmt.Fprintf(stdout, "%s\tphase=%s\tmechanism=%s\n", deref(p.DrugName), joinLabels(p.Phase), joinLabels(p.Mechanism))
	}
	return nil
}

func authedClient() (*apiclient.Client, cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cliConfig{}, err
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, cliConfig{}, errors.New("please login first using 'reframe login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, cliConfig{}, err
	}
	return client, cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinLabels(entries []apiclient.LabeledEntry) string {
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, e.Label+" ("+e.Ref+")")
	}
	return strings.Join(labels, ", ")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, ".reframe", "config.json"), nil
}

func printUsage() {
	fmt.Fprintf(stdout, "reframe CLI %s\n\n", buildVersion)
	fmt.Fprint(stdout, `Usage:
	reframe register --email user@example.com [--password secret] [--captcha token] [--api http://localhost:5000]
	reframe login --email user@example.com [--password secret] [--api http://localhost:5000]
	reframe status
	reframe logout
	reframe assay --qid Q12345 [--json]
	reframe drug --qid Q12345 [--json]
	reframe version
`)
}

func printVersion() {
	fmt.Fprintln(stdout, strings.TrimSpace(buildVersion))
}
