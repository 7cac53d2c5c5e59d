package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/ncruces/go-strftime"
)

// ===================================
// Time Tools
// ===================================

const defaultTimeFormat = "%Y-%m-%d %H:%M:%S"

type CurrentTimeInput struct{}

type CurrentTimeOutput struct {
	Status
	CurrentTime string  `json:"current_time"`
	Timestamp   float64 `json:"timestamp"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
}

type FormatTimeInput struct {
	Timestamp *float64 `json:"timestamp"`
	Format    string   `json:"format,omitempty"`
}

type FormatTimeOutput struct {
	Status
	FormattedTime string  `json:"formatted_time"`
	Timestamp     float64 `json:"timestamp"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func createCurrentTimeTool(cfg Config) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolGetCurrentTime,
			Desc:        "Get the current local date and time together with the Unix timestamp.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		func(ctx context.Context, _ *CurrentTimeInput) (*CurrentTimeOutput, error) {
			now := cfg.Now().In(cfg.Location)
			return &CurrentTimeOutput{
				Status:      succeeded,
				CurrentTime: strftime.Format(defaultTimeFormat, now),
				Timestamp:   unixSeconds(now),
				Date:        strftime.Format("%Y-%m-%d", now),
				Time:        strftime.Format("%H:%M:%S", now),
			}, nil
		},
	)
}

func createFormatTimeTool(cfg Config) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolFormatTime,
			Desc: "Format a Unix timestamp with a strftime pattern.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"timestamp": {
					Type:     schema.Number,
					Desc:     "Unix timestamp in seconds",
					Required: true,
				},
				"format": {
					Type: schema.String,
					Desc: "strftime pattern (default: %Y-%m-%d %H:%M:%S)",
				},
			}),
		},
		func(ctx context.Context, in *FormatTimeInput) (*FormatTimeOutput, error) {
			if in.Timestamp == nil {
				return nil, fmt.Errorf("timestamp is required")
			}
			layout := in.Format
			if strings.TrimSpace(layout) == "" {
				layout = defaultTimeFormat
			}
			t := fromUnixSeconds(*in.Timestamp).In(cfg.Location)
			return &FormatTimeOutput{
				Status:        succeeded,
				FormattedTime: strftime.Format(layout, t),
				Timestamp:     *in.Timestamp,
			}, nil
		},
	)
}
