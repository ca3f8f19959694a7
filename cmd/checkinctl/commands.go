package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/GreaLake/checkIn/common/database"
	rediscommon "github.com/GreaLake/checkIn/common/redis"
	"github.com/GreaLake/checkIn/internal/aggregator"
	"github.com/GreaLake/checkIn/internal/config"
	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/repository"
	"github.com/GreaLake/checkIn/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// newRootCmd checkinctl 运维命令
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkinctl",
		Short:         "Admin tool for the checkin-data service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newProjectsCmd(),
		newStatsCmd(),
		newEventsCmd(),
	)
	return root
}

// openDB 按 checkin-data 的配置连接数据库
func openDB() (*sql.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func newMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the built-in schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return runMigrate(cmd.Context(), nil, cmd.OutOrStdout())
			}
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return runMigrate(cmd.Context(), db, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements without executing them")
	return cmd
}

// runMigrate 依次执行迁移语句；db 为 nil 时只打印
func runMigrate(ctx context.Context, db *sql.DB, out io.Writer) error {
	migrations, err := repository.Migrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	for _, m := range migrations {
		stmts := repository.SplitStatements(m.SQL)
		for i, stmt := range stmts {
			if db == nil {
				fmt.Fprintf(out, "-- %s (%d/%d)\n%s;\n\n", m.Name, i+1, len(stmts), stmt)
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s statement %d failed: %w", m.Name, i+1, err)
			}
		}
		if db != nil {
			fmt.Fprintf(out, "applied %s (%d statements)\n", m.Name, len(stmts))
		}
	}
	return nil
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the project reference table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update projects from a YAML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := readProjectsFile(args[0])
			if err != nil {
				return err
			}
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			repo := repository.NewPostgresProjectsRepository(db)
			for _, p := range projects {
				id, err := repo.UpsertProject(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("project %s: %w", p.ProjectCode, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", id, p.ProjectCode, p.ProjectName)
			}
			return nil
		},
	})
	return cmd
}

type projectFileEntry struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

// readProjectsFile 读取 YAML 项目列表
//
//	- code: P-007
//	  name: 七号井
//	  status: active
func readProjectsFile(path string) ([]domain.Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []projectFileEntry
	if err := yaml.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	projects := make([]domain.Project, 0, len(list))
	for i, e := range list {
		if e.Code == "" || e.Name == "" {
			return nil, fmt.Errorf("%s: entry %d needs code and name", path, i+1)
		}
		projects = append(projects, domain.Project{ProjectCode: e.Code, ProjectName: e.Name, Status: e.Status})
	}
	return projects, nil
}

func newStatsCmd() *cobra.Command {
	var (
		start, end, worker, typ string
		asJSON                  bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print approved work hours for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			tz, err := cfg.TimeLocation()
			if err != nil {
				return err
			}
			req, err := statsRequest(start, end, worker, typ, tz)
			if err != nil {
				return err
			}
			svc := service.NewAttendanceService(
				repository.NewPostgresEntriesRepository(db),
				repository.NewPostgresProjectsRepository(db),
				tz, zap.NewNop(),
			)
			return runStats(cmd.Context(), svc, req, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&worker, "user", "", "Only this worker id")
	cmd.Flags().StringVar(&typ, "type", "", "construction | travel | stop")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func statsRequest(start, end, worker, typ string, tz *time.Location) (service.RecordsRequest, error) {
	req := service.RecordsRequest{WorkerID: worker, ActivityType: typ}
	var err error
	if start != "" {
		if req.Range.Start, err = time.ParseInLocation("2006-01-02", start, tz); err != nil {
			return req, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if end != "" {
		if req.Range.End, err = time.ParseInLocation("2006-01-02", end, tz); err != nil {
			return req, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return req, nil
}

func runStats(ctx context.Context, svc *service.AttendanceService, req service.RecordsRequest, asJSON bool, out io.Writer) error {
	st, err := svc.Statistics(ctx, req)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatistics(out, st)
	return nil
}

func printStatistics(out io.Writer, st *aggregator.Statistics) {
	fmt.Fprintf(out, "records\t%d\n", st.TotalRecords)
	fmt.Fprintf(out, "total\t%.2fh\t%s\n", st.TotalHours, st.TotalDisplay)
	fmt.Fprintf(out, "%s\t%.2fh\n", domain.ActivityConstruction.WorkHoursLabel(), st.ConstructionHours)
	fmt.Fprintf(out, "%s\t%.2fh\n", domain.ActivityTravel.WorkHoursLabel(), st.TravelHours)
	fmt.Fprintf(out, "%s\t%.2fh\n", domain.ActivityStop.WorkHoursLabel(), st.StopHours)

	ids := make([]string, 0, len(st.UserStats))
	for id := range st.UserStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := st.UserStats[id]
		fmt.Fprintf(out, "%s\t%s\t%d\t%.2fh\n", u.WorkerID, u.WorkerName, u.RecordCount, u.TotalHours)
	}
}

func newEventsCmd() *cobra.Command {
	var (
		start, worker string
		count         int64
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List check-in transition events from the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := rediscommon.Connect(cmd.Context(), &cfg.Redis.RedisConfig, 3*time.Second)
			if err != nil {
				return err
			}
			defer client.Close()
			return runEvents(cmd.Context(), client, cfg.Redis.EventStream, start, count, worker, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&start, "from", "-", "First stream id to read")
	cmd.Flags().Int64Var(&count, "count", 50, "Maximum number of messages to read")
	cmd.Flags().StringVar(&worker, "user", "", "Only this worker id")
	return cmd
}

// runEvents 读取事件 stream，每行一条：id 事件 工人 类型 记录 时间
func runEvents(ctx context.Context, client *redis.Client, stream, start string, count int64, worker string, out io.Writer) error {
	if stream == "" {
		stream = service.DefaultEventStream
	}
	if start == "" {
		start = "-"
	}
	msgs, err := rediscommon.ReadRange(ctx, client, stream, start, "+", count)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", stream, err)
	}
	for _, m := range msgs {
		raw, _ := m.Values["data"].(string)
		var ev service.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			fmt.Fprintf(out, "%s\tinvalid event: %v\n", m.ID, err)
			continue
		}
		if worker != "" && ev.WorkerID != worker {
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, ev.Type, ev.WorkerID, ev.ActivityType, ev.EntryID, ev.At.Format(time.RFC3339))
	}
	return nil
}
