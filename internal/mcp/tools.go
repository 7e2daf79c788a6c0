package mcp

import (
	"context"
	"errors"
	"fmt"

	"time-to-sell/internal/session"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, sess Session) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        toolTargetsList,
		Description: "List supported index targets, their currency pairs and which are active",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ targetsListInput) (*mcp.CallToolResult, targetsListOutput, error) {
		if sess == nil {
			return nil, targetsListOutput{}, fmt.Errorf("session unavailable")
		}
		return nil, listTargets(sess.Snapshot()), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolDisplayStateGet,
		Description: "Get the resolved evaluation status, score and reasons for a target",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in displayStateGetInput) (*mcp.CallToolResult, displayStateGetOutput, error) {
		if sess == nil {
			return nil, displayStateGetOutput{}, fmt.Errorf("session unavailable")
		}
		target := sess.Snapshot().Primary
		if in.Target != "" {
			t, err := normalizeTarget(in.Target)
			if err != nil {
				return nil, displayStateGetOutput{}, err
			}
			target = t
		}
		return nil, describeState(sess.DisplayState(target)), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolSessionRefresh,
		Description: "Re-fetch the evaluation and price history for the primary target",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ sessionRefreshInput) (*mcp.CallToolResult, sessionOutput, error) {
		if sess == nil {
			return nil, sessionOutput{}, fmt.Errorf("session unavailable")
		}
		return sessionResult(sess, sess.Refresh(ctx))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolSessionSelectTarget,
		Description: "Make a target primary; its currency pair is fetched alongside",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in sessionSelectTargetInput) (*mcp.CallToolResult, sessionOutput, error) {
		if sess == nil {
			return nil, sessionOutput{}, fmt.Errorf("session unavailable")
		}
		target, err := normalizeTarget(in.Target)
		if err != nil {
			return nil, sessionOutput{}, err
		}
		return sessionResult(sess, sess.OnTargetChanged(ctx, target))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolPriceWindowGet,
		Description: "Get stored price history for a target restricted to a window",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in priceWindowGetInput) (*mcp.CallToolResult, priceWindowGetOutput, error) {
		if sess == nil {
			return nil, priceWindowGetOutput{}, fmt.Errorf("session unavailable")
		}
		target, err := normalizeTarget(in.Target)
		if err != nil {
			return nil, priceWindowGetOutput{}, err
		}
		w, err := normalizeWindow(in.Window, sess.Window())
		if err != nil {
			return nil, priceWindowGetOutput{}, err
		}
		points := tailPoints(sess.PriceWindow(target, w), normalizePointLimit(in.Limit))
		return nil, priceWindowGetOutput{
			Target: target,
			Window: w.String(),
			Count:  len(points),
			Points: points,
		}, nil
	})
}

// sessionResult reports a failed cycle inside the snapshot; the display state
// already carries the error. Only a closed session is a tool error.
func sessionResult(sess Session, err error) (*mcp.CallToolResult, sessionOutput, error) {
	if errors.Is(err, session.ErrClosed) {
		return nil, sessionOutput{}, err
	}
	out := sessionOutput{Snapshot: sess.Snapshot()}
	if err != nil {
		out.Error = err.Error()
	}
	return nil, out, nil
}
