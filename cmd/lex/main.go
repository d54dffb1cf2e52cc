package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lexline/internal/app"
	"lexline/internal/config"
	"lexline/internal/db"
	"lexline/internal/domain"
	"lexline/internal/draft"
	"lexline/internal/engine"
	"lexline/internal/migrate"
	"lexline/internal/plan"
	"lexline/internal/repo"
	"lexline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "lex",
	Short: "Lexline CLI",
	Long: `Lexline runs the case lifecycle for a small legal practice.
- Workspace: your .lexline folder with the database; the service catalog comes from lexline.yml.
- Clients: the people and companies the firm works for, with a service level score and portal access.
- Templates: each legal service is a named sequence of stages with estimated durations.
- Cases: a case is opened for a client from a template; its stages get due dates from the start date.
- Timeline: every case keeps an append-only activity log, newest first.
- Alerts: risk rules flag inactive cases, stuck urgent stages, missed deadlines and unhappy clients.
- Health: each case classifies as critical, at_risk or healthy at any point in time.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LEXLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var firmName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default lexline.yml and seed the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(firmName)), 0o644); err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := config.Load(workspace)
				if err != nil {
					return err
				}
				if err := app.SeedCatalog(ctx, r, cfg); err != nil {
					return err
				}
				fmt.Printf("Wrote %s and seeded %d service templates\n", path, len(cfg.Catalog.Templates))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&firmName, "firm", "Despacho", "firm name")
	return cmd
}

func clientCmd() *cobra.Command {
	cl := &cobra.Command{Use: "client", Short: "Manage clients"}
	cl.AddCommand(clientListCmd())
	cl.AddCommand(clientUpsertCmd())
	cl.AddCommand(clientShowCmd())
	cl.AddCommand(clientAccessCmd())
	return cl
}

func clientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListClients(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Level", "Access"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Email, c.ServiceLevel, c.AccessEnabled})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func clientUpsertCmd() *cobra.Command {
	var id, name, email, phone string
	var level int
	var tags []string
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			if email == "" {
				return fmt.Errorf("--email required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c := domain.Client{
					ID:            id,
					Name:          name,
					Email:         email,
					Phone:         phone,
					ServiceLevel:  100,
					AccessEnabled: true,
					Tags:          tags,
					CreatedAt:     time.Now().UTC(),
				}
				if c.ID == "" {
					c.ID = uuid.New().String()
				} else if existing, err := r.GetClient(ctx, c.ID); err == nil {
					c.ServiceLevel = existing.ServiceLevel
					c.AccessEnabled = existing.AccessEnabled
					c.CreatedAt = existing.CreatedAt
				}
				if cmd.Flags().Changed("level") {
					c.ServiceLevel = level
				}
				if err := r.UpsertClient(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "client id (omit to generate)")
	cmd.Flags().StringVar(&name, "name", "", "client name")
	cmd.Flags().StringVar(&email, "email", "", "client email")
	cmd.Flags().StringVar(&phone, "phone", "", "client phone")
	cmd.Flags().IntVar(&level, "level", 100, "service level (0-100)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	return cmd
}

func clientShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetClient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func clientAccessCmd() *cobra.Command {
	var enabled bool
	cmd := &cobra.Command{
		Use:   "access <id>",
		Short: "Toggle client portal access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SetClientAccess(ctx, args[0], enabled)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "portal access enabled")
	return cmd
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{Use: "template", Short: "Manage service templates"}
	tpl.AddCommand(templateListCmd())
	tpl.AddCommand(templateShowCmd())
	tpl.AddCommand(templatePlanCmd())
	return tpl
}

func templateListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListServiceTemplates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Stages", "Base Price"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, len(t.Stages), t.BasePrice})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a service template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				t, err := r.GetServiceTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func templatePlanCmd() *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "plan <id>",
		Short: "Preview the stage plan for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tpl, err := e.Repo.GetServiceTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				startDate := time.Now().UTC()
				if start != "" {
					startDate, err = time.Parse("2006-01-02", start)
					if err != nil {
						return fmt.Errorf("invalid --start %q: %w", start, err)
					}
				}
				// same generator CreateCase uses, without persisting anything
				stages := plan.Generate(tpl, startDate)
				if viper.GetBool("json") {
					return printJSON(stages)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Title", "Status", "Priority", "Due"})
				for i, s := range stages {
					tw.AppendRow(table.Row{i + 1, s.Title, s.Status, s.Priority, fmtDatePtr(s.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	return cmd
}

func caseCmd() *cobra.Command {
	cs := &cobra.Command{
		Use:   "case",
		Short: "Manage cases",
		Long:  "A case tracks one legal service for one client: its stage checklist, activity timeline, payments and health.",
	}
	cs.AddCommand(caseCreateCmd())
	cs.AddCommand(caseListCmd())
	cs.AddCommand(caseShowCmd())
	cs.AddCommand(caseToggleCmd())
	cs.AddCommand(caseCloseCmd())
	cs.AddCommand(caseActivityCmd())
	cs.AddCommand(caseTimelineCmd())
	cs.AddCommand(casePayCmd())
	cs.AddCommand(caseHealthCmd())
	cs.AddCommand(caseDraftCmd())
	return cs
}

func caseCreateCmd() *cobra.Command {
	var opts engine.CaseCreateOptions
	var start string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a case from a service template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("invalid --start %q: %w", start, err)
				}
				opts.StartDate = t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCase(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "service template id")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "case goal")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.Assignee, "assignee", "", "responsible lawyer")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func caseListCmd() *cobra.Command {
	var status, clientID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListCases(ctx)
				if err != nil {
					return err
				}
				filtered := items[:0]
				for _, c := range items {
					if status != "" && string(c.Status) != status {
						continue
					}
					if clientID != "" && c.ClientID != clientID {
						continue
					}
					filtered = append(filtered, c)
				}
				if viper.GetBool("json") {
					return printJSON(filtered)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Folio", "Client", "Service", "Status", "Progress", "Balance"})
				for _, c := range filtered {
					tw.AppendRow(table.Row{
						c.Folio, c.ClientID, c.Service, c.Status,
						fmt.Sprintf("%.0f%%", c.Progress()*100),
						fmt.Sprintf("%.2f", c.TotalCost-c.PaidTotal()),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, pending, completed, archived)")
	cmd.Flags().StringVar(&clientID, "client", "", "filter by client id")
	return cmd
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a case with its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("%s  %s (%s)\n", c.Folio, c.Service, c.Status)
				fmt.Printf("Client: %s  Start: %s  Progress: %.0f%%\n",
					c.ClientID, c.StartDate.Format("2006-01-02"), c.Progress()*100)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Stage", "Title", "Status", "Priority", "Due", "Completed"})
				for i, s := range c.Stages {
					tw.AppendRow(table.Row{i + 1, s.Title, s.Status, s.Priority, fmtDatePtr(s.DueDate), fmtDatePtr(s.CompletedDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func caseToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <case-id> <stage-id>",
		Short: "Toggle a stage between completed and in progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ToggleStage(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func caseCloseCmd() *cobra.Command {
	var note string
	var rating int
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close an active case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CloseCase(ctx, args[0], note, rating)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "closure note")
	cmd.Flags().IntVar(&rating, "rating", 5, "compliance rating (1-5)")
	return cmd
}

func caseActivityCmd() *cobra.Command {
	var evtType, author, title, description string
	cmd := &cobra.Command{
		Use:   "activity <id>",
		Short: "Append an activity to the case timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev := domain.TimelineEvent{
					Type:        domain.EventType(evtType),
					Author:      domain.Author(author),
					Title:       title,
					Description: description,
				}
				res, err := e.AppendActivity(ctx, args[0], ev)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&evtType, "type", "note", "event type")
	cmd.Flags().StringVar(&author, "author", "lawyer", "author (system, lawyer, client)")
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&description, "description", "", "event description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func caseTimelineCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "timeline <id>",
		Short: "Show the case timeline, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				events := c.Timeline
				if n > 0 && len(events) > n {
					events = events[:n]
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Type", "Author", "Title"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.At.Format(time.RFC3339), ev.Type, ev.Author, ev.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 0, "limit to most recent n events")
	return cmd
}

func casePayCmd() *cobra.Command {
	var amount float64
	var method, note string
	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Record a payment against a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.RecordPayment(ctx, args[0], domain.Payment{
					Amount: amount,
					Method: method,
					Note:   note,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "payment amount")
	cmd.Flags().StringVar(&method, "method", "", "payment method")
	cmd.Flags().StringVar(&note, "note", "", "payment note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func caseHealthCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "health <id>",
		Short: "Classify case health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := time.Now().UTC()
				if at != "" {
					t, err := time.Parse("2006-01-02", at)
					if err != nil {
						return fmt.Errorf("invalid --at %q: %w", at, err)
					}
					now = t
				}
				tag, err := e.CaseHealth(ctx, args[0], now)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"case_id": args[0], "health": tag})
				}
				fmt.Println(tag)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at date (YYYY-MM-DD, default now)")
	return cmd
}

func caseDraftCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "draft-update <id>",
		Short: "Draft a client-facing status update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				drafter := draft.NewClient(draft.Config{
					BaseURL: e.Config.Drafting.BaseURL,
					Model:   e.Config.Drafting.Model,
				})
				if !drafter.Enabled() {
					return fmt.Errorf("drafting is not configured; set drafting.base_url in %s", config.Path(viper.GetString("workspace")))
				}
				c, err := e.Repo.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				cl, err := e.Repo.GetClient(ctx, c.ClientID)
				if err != nil {
					return err
				}
				text, err := drafter.CaseUpdate(ctx, c, cl)
				if err != nil {
					return err
				}
				if record {
					if _, err := e.AppendActivity(ctx, c.ID, domain.TimelineEvent{
						Type:        domain.EventNote,
						Author:      domain.AuthorSystem,
						Title:       "Actualización para el cliente",
						Description: text,
					}); err != nil {
						return err
					}
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&record, "record", true, "append the draft to the case timeline")
	return cmd
}

func alertsCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate risk rules across all cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := time.Now().UTC()
				if at != "" {
					t, err := time.Parse("2006-01-02", at)
					if err != nil {
						return fmt.Errorf("invalid --at %q: %w", at, err)
					}
					now = t
				}
				alerts, err := e.Alerts(ctx, now)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(alerts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Type", "Priority", "Title", "Message"})
				for _, a := range alerts {
					tw.AppendRow(table.Row{a.Type, a.Priority, a.Title, a.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at date (YYYY-MM-DD, default now)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			drafter := draft.NewClient(draft.Config{
				BaseURL: cfg.Drafting.BaseURL,
				Model:   cfg.Drafting.Model,
			})
			handler, err := server.New(server.Config{Engine: e, Drafter: drafter, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Lexline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
