package ui

import (
	"fmt"

	"mqttwatch/filter"
)

// Effect is what the session must do after a command has been applied.
type Effect struct {
	Render bool   // redraw now
	Manual bool   // operator-initiated: restart the countdown and ticker
	Quit   bool   // leave the session loop
	Notice string // short message for the footer
}

// Controller applies commands to the view state and the scheduler. The state
// change is complete when Handle returns; the caller performs any render.
type Controller struct {
	view   *ViewState
	sched  *Scheduler
	masker *filter.Masker
}

func NewController(view *ViewState, sched *Scheduler, masker *filter.Masker) *Controller {
	return &Controller{view: view, sched: sched, masker: masker}
}

func (c *Controller) View() *ViewState { return c.view }

// Handle applies cmd.
func (c *Controller) Handle(cmd Command) Effect {
	switch cmd {
	case CmdNone:
		return Effect{}
	case CmdToggleAuto:
		c.sched.SetAuto(!c.sched.Auto())
		mode := "MANUAL"
		if c.sched.Auto() {
			mode = "AUTO"
		}
		return Effect{Render: true, Manual: true, Notice: "refresh " + mode}
	case CmdRender:
		return Effect{Render: true, Manual: true}
	case CmdCycleSort:
		c.view.Sort = c.view.Sort.Next()
		return Effect{Render: true, Notice: "sort " + c.view.Sort.String()}
	case CmdSortTime:
		c.view.Sort = SortTime
		return Effect{Render: true, Notice: "sort time"}
	case CmdSortLabel:
		c.view.Sort = SortLabel
		return Effect{Render: true, Notice: "sort label"}
	case CmdLabelNarrow:
		c.view.AdjustLabel(-ColumnStep)
		return c.widthEffect()
	case CmdLabelWiden:
		c.view.AdjustLabel(ColumnStep)
		return c.widthEffect()
	case CmdPayloadNarrow:
		c.view.AdjustPayload(-ColumnStep)
		return c.widthEffect()
	case CmdPayloadWiden:
		c.view.AdjustPayload(ColumnStep)
		return c.widthEffect()
	case CmdToggleHighlight:
		c.view.Highlight = !c.view.Highlight
		return Effect{Render: true, Notice: "highlight " + onOff(c.view.Highlight)}
	case CmdToggleMask:
		if !c.masker.HasPatterns() {
			return Effect{Render: true, Notice: "no mask patterns configured"}
		}
		c.masker.SetEnabled(!c.masker.Enabled())
		return Effect{Render: true, Notice: "masking " + onOff(c.masker.Enabled())}
	case CmdDetail:
		c.view.Mode = ViewDetail
		return Effect{Render: true}
	case CmdTableView:
		c.view.Mode = ViewTable
		return Effect{Render: true}
	case CmdQuit:
		return Effect{Quit: true}
	}
	return Effect{}
}

func (c *Controller) widthEffect() Effect {
	return Effect{
		Render: true,
		Notice: fmt.Sprintf("label %d, payload %d", c.view.LabelWidth, c.view.PayloadWidth),
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
