package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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

	"capworks/internal/app"
	"capworks/internal/config"
	"capworks/internal/db"
	"capworks/internal/domain"
	"capworks/internal/engine"
	"capworks/internal/logger"
	"capworks/internal/repo"
	"capworks/internal/server"
	"capworks/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:   "cw",
	Short: "Capworks CLI",
	Long: `Capworks manages municipal capital-works programming: annual programs,
program books, priority scenarios, projects and interventions.

Core concepts:
- Annual program: a yearly planning envelope for one executor.
- Program book: a collection of projects being programmed for a set of
  boroughs and project types within an annual program.
- Priority scenario: the ordered ranking of a program book's projects.
- Automatic loading: scans the project universe, appends every eligible
  project to the book's active scenario, under a persisted lock; runs in
  the background after the trigger returns.
- Intervention: a discrete work item carrying its own program classification;
  non-integrated projects resolve their program type through them.`,
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
	viper.SetEnvPrefix("CAPWORKS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(annualProgramCmd())
	rootCmd.AddCommand(programBookCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(interventionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, cfg, err := app.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	// no runner in CLI mode: loads run to completion in place
	e := engine.New(conn, cfg, nil)
	return fn(ctx, e)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func actorID() string {
	return viper.GetString("actor-id")
}

// annual-program

func annualProgramCmd() *cobra.Command {
	ap := &cobra.Command{Use: "annual-program", Short: "Manage annual programs"}
	ap.AddCommand(annualProgramCreateCmd())
	ap.AddCommand(annualProgramListCmd())
	ap.AddCommand(annualProgramShowCmd())
	ap.AddCommand(annualProgramStatusCmd())
	return ap
}

func annualProgramCreateCmd() *cobra.Command {
	var id, executorID, status, description string
	var year int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create annual program",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ap, err := e.CreateAnnualProgram(ctx, engine.AnnualProgramCreateOptions{
					ID:          id,
					Year:        year,
					ExecutorID:  executorID,
					Status:      status,
					Description: description,
					ActorID:     actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(ap)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "annual program id")
	cmd.Flags().IntVar(&year, "year", 0, "planning year")
	cmd.Flags().StringVar(&executorID, "executor", "", "executor code")
	cmd.Flags().StringVar(&status, "status", "", "status (new, programming, submittedFinal)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("executor")
	return cmd
}

func annualProgramListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List annual programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				programs, err := e.Repo.ListAnnualPrograms(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(programs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Year", "Executor", "Status"})
				for _, ap := range programs {
					tw.AppendRow(table.Row{ap.ID, ap.Year, ap.ExecutorID, ap.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func annualProgramShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an annual program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ap, err := e.Repo.GetAnnualProgram(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(ap)
			})
		},
	}
	return cmd
}

func annualProgramStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set annual program status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetAnnualProgramStatus(ctx, args[0], args[1], actorID())
			})
		},
	}
	return cmd
}

// program-book

func programBookCmd() *cobra.Command {
	pb := &cobra.Command{Use: "program-book", Short: "Manage program books"}
	pb.AddCommand(programBookCreateCmd())
	pb.AddCommand(programBookListCmd())
	pb.AddCommand(programBookShowCmd())
	pb.AddCommand(programBookStatusCmd())
	pb.AddCommand(programBookLoadCmd())
	pb.AddCommand(programBookUnlockCmd())
	pb.AddCommand(programBookScenarioCmd())
	return pb
}

func programBookCreateCmd() *cobra.Command {
	var id, annualProgramID, name, status, inCharge string
	var projectTypes, programTypes, boroughs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create program book",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pb, err := e.CreateProgramBook(ctx, engine.ProgramBookCreateOptions{
					ID:              id,
					AnnualProgramID: annualProgramID,
					Name:            name,
					Status:          status,
					InCharge:        inCharge,
					ProjectTypes:    projectTypes,
					ProgramTypes:    programTypes,
					BoroughIDs:      boroughs,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(pb)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "program book id")
	cmd.Flags().StringVar(&annualProgramID, "annual-program", "", "owning annual program id")
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&inCharge, "in-charge", "", "person in charge")
	cmd.Flags().StringSliceVar(&projectTypes, "project-types", nil, "allowed project type codes")
	cmd.Flags().StringSliceVar(&programTypes, "program-types", nil, "allowed program type codes (empty = unrestricted)")
	cmd.Flags().StringSliceVar(&boroughs, "boroughs", nil, "allowed borough codes (empty = unrestricted, MTL = city-wide)")
	_ = cmd.MarkFlagRequired("annual-program")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func programBookListCmd() *cobra.Command {
	var annualProgramID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List program books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				books, err := e.Repo.ListProgramBooks(ctx, annualProgramID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(books)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Annual Program", "Loading"})
				for _, pb := range books {
					loading := ""
					if pb.IsAutomaticLoadingInProgress {
						loading = "in progress"
					}
					tw.AppendRow(table.Row{pb.ID, pb.Name, pb.Status, pb.AnnualProgramID, loading})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&annualProgramID, "annual-program", "", "filter by annual program id")
	return cmd
}

func programBookShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a program book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pb, err := e.Repo.GetProgramBook(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(pb)
			})
		},
	}
	return cmd
}

func programBookStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set program book status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetProgramBookStatus(ctx, args[0], args[1], actorID())
			})
		},
	}
	return cmd
}

func programBookLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Run automatic loading for a program book",
		Long:  "Runs the automatic-loading scan to completion (the CLI has no background runner) and prints the resulting active scenario.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.TriggerAutomaticLoading(ctx, args[0], actorID()); err != nil {
					return err
				}
				pb, err := e.Repo.GetProgramBook(ctx, args[0])
				if err != nil {
					return err
				}
				scenario := pb.ActiveScenario()
				if scenario == nil {
					return fmt.Errorf("program book %s has no priority scenario", pb.ID)
				}
				return printJSON(scenario)
			})
		},
	}
	return cmd
}

func programBookUnlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock <id>",
		Short: "Clear a stuck automatic-loading lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ResetLoading(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Printf("program book %s unlocked\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func programBookScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <id>",
		Short: "Show a program book's active priority scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pb, err := e.Repo.GetProgramBook(ctx, args[0])
				if err != nil {
					return err
				}
				scenario := pb.ActiveScenario()
				if scenario == nil {
					return fmt.Errorf("program book %s has no priority scenario", pb.ID)
				}
				if viper.GetBool("json") {
					return printJSON(scenario)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Rank", "Project"})
				for _, op := range scenario.OrderedProjects {
					tw.AppendRow(table.Row{op.Rank, op.ProjectID})
				}
				tw.Render()
				if scenario.IsOutdated {
					fmt.Println("scenario is outdated; membership changed since last sequencing")
				}
				return nil
			})
		},
	}
	return cmd
}

// project

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectCompatibleCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, status, executorID, projectTypeID, boroughID string
	var startYear, endYear int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					ID:            id,
					Name:          name,
					Status:        status,
					ExecutorID:    executorID,
					ProjectTypeID: projectTypeID,
					BoroughID:     boroughID,
					StartYear:     startYear,
					EndYear:       endYear,
					ActorID:       actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&executorID, "executor", "", "executor code")
	cmd.Flags().StringVar(&projectTypeID, "type", "", "project type code")
	cmd.Flags().StringVar(&boroughID, "borough", "", "borough code")
	cmd.Flags().IntVar(&startYear, "start-year", 0, "first year of the validity window")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "last year of the validity window")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("executor")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("borough")
	_ = cmd.MarkFlagRequired("start-year")
	_ = cmd.MarkFlagRequired("end-year")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.Repo.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Executor", "Type", "Borough", "Years"})
				for _, p := range projects {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.ExecutorID, p.ProjectTypeID, p.BoroughID, fmt.Sprintf("%d-%d", p.StartYear, p.EndYear)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ExecutorID, "executor", "", "executor filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.BoroughID, "borough", "", "borough filter")
	cmd.Flags().IntVar(&f.YearOverlap, "year", 0, "only projects whose window covers this year")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	return cmd
}

func projectCompatibleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compatible <id>",
		Short: "List program books this project could join",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				books, err := e.CompatibleProgramBooks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(books)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Annual Program"})
				for _, pb := range books {
					tw.AppendRow(table.Row{pb.ID, pb.Name, pb.Status, pb.AnnualProgramID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// intervention

func interventionCmd() *cobra.Command {
	iv := &cobra.Command{Use: "intervention", Short: "Manage interventions"}
	iv.AddCommand(interventionCreateCmd())
	iv.AddCommand(interventionAssignCmd())
	iv.AddCommand(interventionListCmd())
	return iv
}

func interventionCreateCmd() *cobra.Command {
	var id, name, projectID, programID, boroughID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create intervention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				iv, err := e.CreateIntervention(ctx, engine.InterventionCreateOptions{
					ID:        id,
					Name:      name,
					ProjectID: projectID,
					ProgramID: programID,
					BoroughID: boroughID,
					ActorID:   actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(iv)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "intervention id")
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&projectID, "project", "", "linked project id")
	cmd.Flags().StringVar(&programID, "program", "", "program type code")
	cmd.Flags().StringVar(&boroughID, "borough", "", "borough code")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

func interventionAssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <intervention-id> <project-id>",
		Short: "Assign an intervention to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.AssignIntervention(ctx, args[0], args[1], actorID())
			})
		},
	}
	return cmd
}

func interventionListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's interventions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				interventions, err := e.Repo.ListInterventionsByProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSON(interventions)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

// config

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace taxonomy config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default capworks.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate capworks.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

// apikey

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var name, actor string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				key := "cw_" + hex.EncodeToString(raw)
				if actor == "" {
					actor = actorID()
				}
				rec := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: actor,
					Name:    name,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				fmt.Printf("API key (store it now, it is not retrievable): %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// log

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	var entityID string
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.Repo.ListEvents(ctx, entityID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range evts {
					tw.AppendRow(table.Row{evt.TS, evt.Type, evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().StringVar(&entityID, "entity", "", "filter by entity id")
	tail.Flags().IntVar(&limit, "limit", 50, "max events")
	lg.AddCommand(tail)
	return lg
}

// serve

func serveCmd() *cobra.Command {
	var addr, basePath, logLevel, logFormat string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logger.Init(logLevel, logFormat); err != nil {
				return err
			}
			defer logger.Sync()
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			runner := worker.New(cfg.Loading.QueueSize)
			defer runner.Shutdown()
			e := engine.New(conn, cfg, runner)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CAPWORKS_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CAPWORKS_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Capworks API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "log format (json, console)")
	return cmd
}
