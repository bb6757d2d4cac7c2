package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"umkmrag/app/logger"
	"umkmrag/app/server"
	"umkmrag/app/ui"
	"umkmrag/types"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on SERVER_ADDR.

Routes:
  GET  /health
  GET  /chat?question=...   POST /chat {"question": "..."}
  GET  /admin/status
  POST /admin/upload        (multipart field "file")
  GET  /admin/model         PUT /admin/model {"model": "..."}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.close()

			s := server.NewServer(cfg.ServerAddr, cfg.CORSOrigins, server.Deps{
				Chat:   rt.svc,
				Admin:  rt.svc,
				Models: rt.agent,
			}, log)

			errCh := make(chan error, 1)
			go func() { errCh <- s.Run() }()

			sigch := make(chan os.Signal, 1)
			signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigch)

			select {
			case err := <-errCh:
				return err
			case <-sigch:
				log.Info("Received shutdown signal, shutting down server...")
				s.Stop()
				return nil
			}
		},
	}
}

func newUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Interactive terminal UI (User and Admin modes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			// the UI owns the terminal, logs would corrupt it
			rt, err := buildRuntime(cmd.Context(), cfg, logger.Discard())
			if err != nil {
				return err
			}
			defer rt.close()
			return ui.Run(cmd.Context(), rt.svc)
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Index one or more PDF catalogs",
		Long: `Copy each PDF into UPLOAD_DIR, extract its text and add the chunks to
the index. Files are processed in order; the first failure stops the run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.close()

			for _, path := range args {
				added, err := rt.svc.IngestFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, userError(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: added %d chunks\n", path, added)
			}
			return nil
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed catalogs",
		Example: `  umkmrag ask "UMKM apa saja yang sudah bergabung?"
  umkmrag ask --json "recommend a coffee drink"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.close()

			answer, err := rt.svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return userError(err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(answer)
			}
			fmt.Fprint(cmd.OutOrStdout(), types.RenderAnswer(answer))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured answer as JSON")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index readiness and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.close()

			st, err := rt.svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(st)
			}
			fmt.Fprintf(out, "index:              %s\n", st.Index)
			fmt.Fprintf(out, "vectors:            %d\n", st.Vectors)
			fmt.Fprintf(out, "pdf files uploaded: %d\n", st.PDFFilesUploaded)
			fmt.Fprintln(out, st.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "umkmrag %s (%s)\n", version, commit)
		},
	}
}
