package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"time-to-sell/internal/chart"
	"time-to-sell/internal/domain"
	"time-to-sell/internal/requestid"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"
	"time-to-sell/internal/status"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

// SessionReader is the read side of the orchestration session.
type SessionReader interface {
	Snapshot() session.Snapshot
	DisplayState(target domain.IndexType) domain.DisplayState
	PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint
	Window() series.Window
}

// ScoringClient answers commands for targets outside the active pair.
type ScoringClient interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResponse, error)
	PriceHistory(ctx context.Context, target domain.IndexType) ([]domain.PricePoint, error)
}

type ChartRenderer interface {
	RenderPriceChart(points []domain.PricePoint, opts chart.Options) (*chart.Image, error)
}

const commandTimeout = 20 * time.Second

type commands struct {
	sess    SessionReader
	scoring ScoringClient
	charts  ChartRenderer
}

func StartTelegramBot(token string, sess SessionReader, scoring ScoringClient, charts ChartRenderer, logger zerolog.Logger) *AlertDispatcher {
	if token == "" {
		logger.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Telegram bot")
		return nil
	}
	alerts := NewAlertDispatcher(b, logger)
	cmds := &commands{sess: sess, scoring: scoring, charts: charts}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/score", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		msg, err := cmds.score(ctx, c.Args())
		if err != nil {
			return c.Send(err.Error())
		}
		return c.Send(msg)
	})

	b.Handle("/chart", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		img, caption, err := cmds.chart(ctx, c.Args())
		if err != nil {
			return c.Send(err.Error())
		}
		return c.Send(&tele.Photo{
			File:    tele.FromReader(bytes.NewReader(img.Bytes)),
			Caption: caption,
		})
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Label-change alerts enabled for this chat.")
			}
			return c.Send("Label-change alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Label-change alerts disabled for this chat.")
			}
			return c.Send("Label-change alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	logger.Info().Msg("Telegram bot started")
	go b.Start()
	return alerts
}

func supportedTargetsText() string {
	names := make([]string, len(domain.SupportedTargets))
	for i, t := range domain.SupportedTargets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// parseTargetArg returns the primary when no index is given.
func (c *commands) parseTargetArg(args []string, usage string) (domain.IndexType, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		if c.sess == nil {
			return "", fmt.Errorf("%s\nSupported: %s", usage, supportedTargetsText())
		}
		return c.sess.Snapshot().Primary, nil
	}
	target, err := domain.ParseIndexType(args[0])
	if err != nil {
		return "", fmt.Errorf("Unknown index: %s\nSupported: %s", args[0], supportedTargetsText())
	}
	return target, nil
}

func (c *commands) isActive(snap session.Snapshot, target domain.IndexType) bool {
	_, ok := snap.State(target)
	return ok
}

func (c *commands) score(ctx context.Context, args []string) (string, error) {
	target, err := c.parseTargetArg(args, "Usage: /score SP500")
	if err != nil {
		return "", err
	}

	var snap session.Snapshot
	if c.sess != nil {
		snap = c.sess.Snapshot()
		if c.isActive(snap, target) {
			return formatDisplayState(c.sess.DisplayState(target)), nil
		}
	}
	if c.scoring == nil {
		return "", errors.New("Scoring service unavailable")
	}

	scoreMA := snap.ScoreMA
	if scoreMA == 0 {
		scoreMA = domain.DefaultScoreMA
	}
	resp, err := c.scoring.Evaluate(ctx, domain.EvaluationRequest{
		IndexType: target,
		Position:  snap.Position,
		ScoreMA:   scoreMA,
		RequestID: requestid.Generate(),
	})
	if err != nil {
		return "", fmt.Errorf("Error evaluating %s: %v", target, err)
	}
	return formatDisplayState(domain.DisplayState{
		Target:   target,
		Status:   status.Resolve(resp),
		Response: resp,
	}), nil
}

func (c *commands) chart(ctx context.Context, args []string) (*chart.Image, string, error) {
	if c.charts == nil {
		return nil, "", errors.New("Chart renderer unavailable")
	}
	target, err := c.parseTargetArg(args, "Usage: /chart SP500")
	if err != nil {
		return nil, "", err
	}

	window := series.Window1Y
	var snap session.Snapshot
	var points []domain.PricePoint
	if c.sess != nil {
		snap = c.sess.Snapshot()
		window = c.sess.Window()
		points = c.sess.PriceWindow(target, window)
	}
	if len(points) == 0 && c.scoring != nil {
		history, err := c.scoring.PriceHistory(ctx, target)
		if err != nil {
			return nil, "", fmt.Errorf("Error fetching price history for %s: %v", target, err)
		}
		points = series.Slice(history, window)
	}
	if len(points) == 0 {
		return nil, "", fmt.Errorf("No price history for %s yet.", target)
	}

	img, err := c.charts.RenderPriceChart(points, chart.Options{
		Window:  window,
		AvgCost: snap.Position.AvgCost,
		ScoreMA: snap.ScoreMA,
	})
	if err != nil {
		return nil, "", fmt.Errorf("Error rendering chart for %s: %v", target, err)
	}
	last := points[len(points)-1]
	caption := fmt.Sprintf("%s %s  close %.2f (%s)", target.DisplayName(), window, last.Close, last.Date)
	return img, caption, nil
}

func formatDisplayState(st domain.DisplayState) string {
	lines := []string{fmt.Sprintf("%s [%s]", st.Target.DisplayName(), st.Status)}
	if st.Response == nil {
		if st.Err != "" {
			lines = append(lines, "Error: "+st.Err)
		} else {
			lines = append(lines, "No evaluation yet.")
		}
		return strings.Join(lines, "\n")
	}

	resp := st.Response
	lines = append(lines,
		fmt.Sprintf("Total: %.1f (%s)", resp.Scores.Total, labelOrDash(resp.Scores.Label)),
		fmt.Sprintf("Technical %.1f  Macro %.1f  Event %+.1f", resp.Scores.Technical, resp.Scores.Macro, resp.Scores.EventAdjustment),
		fmt.Sprintf("Price: %.2f", resp.CurrentPrice),
	)
	if resp.MarketValue != 0 {
		lines = append(lines, fmt.Sprintf("Value: %.0f  P&L: %+.0f", resp.MarketValue, resp.UnrealizedPnL))
	}
	if st.IsRetrying {
		lines = append(lines, fmt.Sprintf("Refreshing (attempt %d)...", st.Attempt))
	}
	if st.Err != "" {
		lines = append(lines, "Error: "+st.Err)
	}
	for _, reason := range status.Explain(resp.Reasons) {
		lines = append(lines, "- "+reason)
	}
	return strings.Join(lines, "\n")
}
