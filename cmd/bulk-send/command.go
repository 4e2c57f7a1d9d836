package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/logging"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

// env is what every subcommand needs: config, the campaign log and a
// directory to resolve institutions against.
type env struct {
	cfg      *config.Config
	store    repository.Store
	logs     *campaignlog.Store
	dir      directory.Directory
	closeDir func() error
	closeLog func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	closeLog := logging.Setup(cfg.Logging)

	store, err := repository.Open(cfg.Store)
	if err != nil {
		closeLog()
		return nil, err
	}
	dir, closeDir, err := directory.Open(ctx, cfg.Directory)
	if err != nil {
		store.Close()
		closeLog()
		return nil, err
	}
	return &env{
		cfg:      cfg,
		store:    store,
		logs:     campaignlog.NewStore(store),
		dir:      dir,
		closeDir: closeDir,
		closeLog: closeLog,
	}, nil
}

func (e *env) Close() {
	_ = e.closeDir()
	_ = e.store.Close()
	e.closeLog()
}

func parseSelection(names []string) (models.RecipientSelection, error) {
	var sel models.RecipientSelection
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "students":
			sel.Students = true
		case "parents":
			sel.Parents = true
		case "staff":
			sel.Staff = true
		case "emergency":
			sel.Emergency = true
		case "all":
			sel = models.SelectAll()
		case "":
		default:
			return sel, fmt.Errorf("unknown recipient category %q", n)
		}
	}
	return sel, nil
}

func cmdSend() *cli.Command {
	var (
		institutions []string
		recipients   []string
		channel      string
		priority     string
		category     string
		title        string
		body         string
		language     string
		allowEmpty   bool
	)

	return &cli.Command{
		Name:  "send",
		Usage: "Send one notification to every listed institution",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "institution",
				Aliases:     []string{"i"},
				Usage:       "Institution id, repeatable",
				Required:    true,
				Destination: &institutions,
			},
			&cli.StringSliceFlag{
				Name:        "recipients",
				Aliases:     []string{"r"},
				Usage:       "Recipient categories: students, parents, staff, emergency or all",
				Value:       []string{"students", "parents", "staff"},
				Destination: &recipients,
			},
			&cli.StringFlag{
				Name:        "channel",
				Aliases:     []string{"c"},
				Usage:       "sms, ivr or both",
				Value:       string(models.ChannelSMS),
				Destination: &channel,
			},
			&cli.StringFlag{
				Name:        "priority",
				Usage:       "high, medium or low",
				Value:       string(models.PriorityMedium),
				Destination: &priority,
			},
			&cli.StringFlag{
				Name:        "category",
				Usage:       "Message category",
				Value:       string(models.AlertCategoryGeneral),
				Destination: &category,
			},
			&cli.StringFlag{
				Name:        "title",
				Aliases:     []string{"t"},
				Destination: &title,
			},
			&cli.StringFlag{
				Name:        "body",
				Aliases:     []string{"b"},
				Destination: &body,
			},
			&cli.StringFlag{
				Name:        "language",
				Destination: &language,
				Sources:     cli.EnvVars("DEFAULT_LANGUAGE"),
			},
			&cli.BoolFlag{
				Name:        "allow-empty",
				Usage:       "Record a zero-recipient campaign instead of failing",
				Destination: &allowEmpty,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sel, err := parseSelection(recipients)
			if err != nil {
				return err
			}
			req := dispatch.BulkRequest{
				InstitutionIDs: institutions,
				Request: dispatch.Request{
					Channel:    models.Channel(channel),
					Priority:   models.Priority(priority),
					Category:   models.AlertCategory(category),
					Title:      title,
					Body:       body,
					Language:   language,
					Selection:  sel,
					Kind:       dispatch.KindBulk,
					AllowEmpty: allowEmpty,
				},
			}
			return runSend(ctx, os.Stdout, req)
		},
	}
}

type sendResult struct {
	InstitutionID string              `json:"institution_id"`
	Campaign      *models.CampaignLog `json:"campaign,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func runSend(ctx context.Context, w io.Writer, req dispatch.BulkRequest) error {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	d := dispatch.New(e.dir, e.logs, e.cfg.Dispatch)
	results := d.DispatchBulk(ctx, req)

	out := make([]sendResult, 0, len(results))
	var failed int
	for _, r := range results {
		sr := sendResult{InstitutionID: r.InstitutionID, Campaign: r.Log}
		if r.Err != nil {
			sr.Error = r.Err.Error()
			failed++
		}
		out = append(out, sr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if failed == len(results) {
		return fmt.Errorf("no institution was notified")
	}
	return nil
}

func cmdStats() *cli.Command {
	var (
		institution string
		channel     string
	)

	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize stored campaign logs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "institution",
				Aliases:     []string{"i"},
				Destination: &institution,
			},
			&cli.StringFlag{
				Name:        "channel",
				Aliases:     []string{"c"},
				Destination: &channel,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			filter := repository.CampaignFilter{InstitutionID: institution}
			if channel != "" {
				ch := models.Channel(channel)
				if !ch.Valid() {
					return fmt.Errorf("unknown channel %q", channel)
				}
				filter.Channel = &ch
			}

			return runStats(ctx, os.Stdout, filter)
		},
	}
}

func runStats(ctx context.Context, w io.Writer, filter repository.CampaignFilter) error {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.logs.AggregateStats(ctx, filter)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
