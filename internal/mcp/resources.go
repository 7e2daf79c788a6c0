package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, sess Session) {
	server.AddResource(&mcp.Resource{
		URI:         "timing://targets",
		Name:        "targets",
		Description: "Supported index targets with their currency pairs",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("session unavailable")
		}
		return jsonResource(req.Params.URI, listTargets(sess.Snapshot()))
	})

	server.AddResource(&mcp.Resource{
		URI:         "timing://snapshot",
		Name:        "snapshot",
		Description: "Primary target, pair states, currency insight and NAV",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("session unavailable")
		}
		return jsonResource(req.Params.URI, sess.Snapshot())
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "timing://state/{target}",
		Name:        "state-by-target",
		Description: "Display state and explained reasons for one target",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("session unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "timing" || parsed.Host != "state" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		target, err := normalizeTarget(strings.Trim(strings.TrimSpace(parsed.Path), "/"))
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, describeState(sess.DisplayState(target)))
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "timing://series/{target}{?window,limit}",
		Name:        "series-by-target",
		Description: "Stored price history for a target; optional window and limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("session unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "timing" || parsed.Host != "series" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		target, err := normalizeTarget(strings.Trim(strings.TrimSpace(parsed.Path), "/"))
		if err != nil {
			return nil, err
		}
		w, err := normalizeWindow(parsed.Query().Get("window"), sess.Window())
		if err != nil {
			return nil, err
		}

		limit := defaultPointLimit
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			limit = normalizePointLimit(n)
		}

		points := tailPoints(sess.PriceWindow(target, w), limit)
		return jsonResource(req.Params.URI, priceWindowGetOutput{
			Target: target,
			Window: w.String(),
			Count:  len(points),
			Points: points,
		})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
