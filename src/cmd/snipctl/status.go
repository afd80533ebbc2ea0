package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// statusView mirrors the resident's STATUS body.
type statusView struct {
	State       string     `json:"state"`
	SessionID   string     `json:"sessionId"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	CapturedAt  *time.Time `json:"capturedAt"`
	DefaultMode string     `json:"defaultMode"`
	OverlayURL  string     `json:"overlayUrl"`
}

func renderStatus(st statusView, now time.Time) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})

	tw.AppendRow(table.Row{"State", st.State})
	if st.SessionID != "" {
		tw.AppendRow(table.Row{"Session", st.SessionID})
		tw.AppendRow(table.Row{"Capture", fmt.Sprintf("%dx%d", st.Width, st.Height)})
	} else {
		tw.AppendRow(table.Row{"Session", "-"})
	}
	if st.CapturedAt != nil {
		tw.AppendRow(table.Row{"Age", now.Sub(*st.CapturedAt).Round(time.Second).String()})
	}
	if st.DefaultMode != "" {
		tw.AppendRow(table.Row{"Mode", st.DefaultMode})
	}
	tw.AppendRow(table.Row{"Overlay", st.OverlayURL})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
