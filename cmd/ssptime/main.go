package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tecolab/ssptime-go/internal/config"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	appHTTP "github.com/tecolab/ssptime-go/internal/handler/http"
	"github.com/tecolab/ssptime-go/internal/pkg/credential"
	"github.com/tecolab/ssptime-go/internal/pkg/export"
	"github.com/tecolab/ssptime-go/internal/pkg/logger"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"github.com/tecolab/ssptime-go/internal/service/crawl"
	"github.com/tecolab/ssptime-go/internal/service/fetch"
	"go.uber.org/zap"
)

const keyringService = "ssptime"

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	service attendance.FetchService
	creds   credential.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return nil, err
	}

	caCert, err := cfg.LoadCACert()
	if err != nil {
		return nil, err
	}

	client, err := portal.NewClient(portal.Config{
		BaseURL:        cfg.Portal.BaseURL,
		LoginPath:      cfg.Portal.LoginPath,
		AttendancePath: cfg.Portal.AttendancePath,
		Timeout:        cfg.Portal.RequestTimeout,
		CACert:         caCert,
		RetryAttempts:  cfg.Portal.RetryAttempts,
		RetryBaseDelay: cfg.Portal.RetryBaseDelay,
	}, log)
	if err != nil {
		return nil, err
	}

	overtimeCfg, err := cfg.OvertimeConfig()
	if err != nil {
		return nil, err
	}

	crawler := crawl.NewCrawler(client, cfg.Portal.MaxPages, log)
	service := fetch.NewFetchService(client, crawler, overtimeCfg, log)

	return &app{
		cfg:     cfg,
		log:     log,
		service: service,
		creds:   credential.NewKeyring(keyringService),
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "ssptime",
		Short:         "Fetch SSP attendance anomalies and derive daily overtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFetchCmd(), newExportCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newFetchCmd() *cobra.Command {
	var account string
	var saveSecret bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch anomaly records and print the overtime table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			result, err := a.runFetch(cmd, account, saveSecret)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "portal account")
	cmd.Flags().BoolVar(&saveSecret, "save-secret", false, "store the secret in the OS credential store after a successful login")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newExportCmd() *cobra.Command {
	var account string
	var saveSecret bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch anomaly records and write an Excel overtime report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			result, err := a.runFetch(cmd, account, saveSecret)
			if err != nil {
				return err
			}

			writer := export.NewWriter(a.cfg.Export.OutputDir)
			path, err := writer.Write(result)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			fmt.Fprintln(cmd.OutOrStdout(), "Report written to", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "portal account")
	cmd.Flags().BoolVar(&saveSecret, "save-secret", false, "store the secret in the OS credential store after a successful login")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the fetch API for a GUI shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			handler := appHTTP.NewFetchHandler(a.service, a.log)
			router := appHTTP.NewRouter(handler, a.cfg.App.Env)

			addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.App.Port)
			a.log.Info("listening", zap.String("addr", addr))
			return http.ListenAndServe(addr, router)
		},
	}
}

func (a *app) runFetch(cmd *cobra.Command, account string, saveSecret bool) (attendance.FetchResult, error) {
	secret, fromStore, err := a.resolveSecret(cmd, account)
	if err != nil {
		return attendance.FetchResult{}, err
	}

	result, err := a.service.Fetch(cmd.Context(), attendance.FetchRequest{
		Account: account,
		Secret:  secret,
	})
	if err != nil {
		return attendance.FetchResult{}, err
	}

	if saveSecret && !fromStore {
		if err := a.creds.Set(account, secret); err != nil {
			a.log.Warn("could not store secret", zap.Error(err))
		}
	}
	return result, nil
}

// resolveSecret tries the OS credential store first, then prompts.
func (a *app) resolveSecret(cmd *cobra.Command, account string) (secret string, fromStore bool, err error) {
	secret, err = a.creds.Get(account)
	if err == nil {
		return secret, true, nil
	}
	if !errors.Is(err, credential.ErrNotFound) {
		a.log.Warn("credential store unavailable", zap.Error(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Secret for %s: ", account)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", false, fmt.Errorf("failed to read secret: %w", err)
	}
	secret = strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", false, fmt.Errorf("secret must not be empty")
	}
	return secret, false, nil
}

func printResult(out io.Writer, result attendance.FetchResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCLOCK IN\tCLOCK OUT\tOVERTIME (MIN)\tREASON")
	for _, r := range result.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Record.Date.Format("2006/01/02"),
			r.Record.ClockIn.Format("15:04:05"),
			r.Record.ClockOut.Format("15:04:05"),
			r.OvertimeMinutes.StringFixed(2),
			r.Record.AnomalyReason)
	}
	w.Flush()

	s := result.Summary
	fmt.Fprintf(out, "\n%d day(s), %d with overtime, total %s min, max %s min\n",
		s.RecordDays, s.OvertimeDays,
		s.TotalOvertimeMinutes.StringFixed(2), s.MaxOvertimeMinutes.StringFixed(2))

	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\n%d row(s) skipped:\n", len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Fprintf(out, "  row %d: %s (%s)\n", warning.Row, warning.Reason, warning.Raw)
		}
	}
}
