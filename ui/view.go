package ui

const (
	// MinColumnWidth is the floor for the label and payload columns.
	MinColumnWidth = 10
	// ColumnStep is how far one width key moves a column.
	ColumnStep = 5

	DefaultLabelWidth   = 40
	DefaultPayloadWidth = 60
)

// ViewMode selects what the screen shows.
type ViewMode int

const (
	ViewTable ViewMode = iota
	ViewDetail
)

// ViewState holds the presentation settings mutated by key commands. It never
// affects what the store contains.
type ViewState struct {
	Sort         SortKey
	LabelWidth   int
	PayloadWidth int
	Highlight    bool
	Mode         ViewMode
}

// NewViewState returns defaults for the given sort key. Widths below the
// floor are raised to it.
func NewViewState(sort SortKey, labelWidth, payloadWidth int) *ViewState {
	if labelWidth <= 0 {
		labelWidth = DefaultLabelWidth
	}
	if payloadWidth <= 0 {
		payloadWidth = DefaultPayloadWidth
	}
	return &ViewState{
		Sort:         sort,
		LabelWidth:   max(labelWidth, MinColumnWidth),
		PayloadWidth: max(payloadWidth, MinColumnWidth),
		Highlight:    true,
	}
}

// AdjustLabel moves the label column width by delta, keeping the floor.
func (v *ViewState) AdjustLabel(delta int) {
	v.LabelWidth = max(v.LabelWidth+delta, MinColumnWidth)
}

// AdjustPayload moves the payload column width by delta, keeping the floor.
func (v *ViewState) AdjustPayload(delta int) {
	v.PayloadWidth = max(v.PayloadWidth+delta, MinColumnWidth)
}
