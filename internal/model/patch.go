package model

// Field names an editable element field (its JSON name).
type Field string

const (
	FieldX           Field = "x"
	FieldY           Field = "y"
	FieldWidth       Field = "width"
	FieldHeight      Field = "height"
	FieldEndX        Field = "endX"
	FieldEndY        Field = "endY"
	FieldContent     Field = "content"
	FieldColor       Field = "color"
	FieldStrokeColor Field = "strokeColor"
	FieldStrokeWidth Field = "strokeWidth"
	FieldFillColor   Field = "fillColor"
	FieldFontSize    Field = "fontSize"
	FieldFontWeight  Field = "fontWeight"
	FieldGroupID     Field = "groupId"

	// collaboration counters; never sent in a patch, tracked only for
	// optimistic vote/comment updates
	FieldVotes        Field = "votes"
	FieldCommentCount Field = "commentCount"
)

// ElementPatch 부분 필드 업데이트 (nil 필드는 변경 없음)
type ElementPatch struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	EndX        *float64 `json:"endX,omitempty"`
	EndY        *float64 `json:"endY,omitempty"`
	Content     *string  `json:"content,omitempty"`
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"strokeColor,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	FillColor   *string  `json:"fillColor,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontWeight  *string  `json:"fontWeight,omitempty"`
	GroupID     *string  `json:"groupId,omitempty"`
}

// Fields lists the fields set in the patch.
func (p ElementPatch) Fields() []Field {
	var fs []Field
	add := func(set bool, f Field) {
		if set {
			fs = append(fs, f)
		}
	}
	add(p.X != nil, FieldX)
	add(p.Y != nil, FieldY)
	add(p.Width != nil, FieldWidth)
	add(p.Height != nil, FieldHeight)
	add(p.EndX != nil, FieldEndX)
	add(p.EndY != nil, FieldEndY)
	add(p.Content != nil, FieldContent)
	add(p.Color != nil, FieldColor)
	add(p.StrokeColor != nil, FieldStrokeColor)
	add(p.StrokeWidth != nil, FieldStrokeWidth)
	add(p.FillColor != nil, FieldFillColor)
	add(p.FontSize != nil, FieldFontSize)
	add(p.FontWeight != nil, FieldFontWeight)
	add(p.GroupID != nil, FieldGroupID)
	return fs
}

// Empty reports whether no field is set.
func (p ElementPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply 패치를 요소에 적용
func (p ElementPatch) Apply(e *Element) {
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}
	if p.Width != nil {
		e.Width = clonePtr(p.Width)
	}
	if p.Height != nil {
		e.Height = clonePtr(p.Height)
	}
	if p.EndX != nil {
		e.EndX = clonePtr(p.EndX)
	}
	if p.EndY != nil {
		e.EndY = clonePtr(p.EndY)
	}
	if p.Content != nil {
		e.Content = clonePtr(p.Content)
	}
	if p.Color != nil {
		e.Color = clonePtr(p.Color)
	}
	if p.StrokeColor != nil {
		e.StrokeColor = clonePtr(p.StrokeColor)
	}
	if p.StrokeWidth != nil {
		e.StrokeWidth = clonePtr(p.StrokeWidth)
	}
	if p.FillColor != nil {
		e.FillColor = clonePtr(p.FillColor)
	}
	if p.FontSize != nil {
		e.FontSize = clonePtr(p.FontSize)
	}
	if p.FontWeight != nil {
		e.FontWeight = clonePtr(p.FontWeight)
	}
	if p.GroupID != nil {
		e.GroupID = clonePtr(p.GroupID)
	}
}

// Merge returns p overlaid with next; fields set in next win.
func (p ElementPatch) Merge(next ElementPatch) ElementPatch {
	out := p
	pick := func(dst **float64, src *float64) {
		if src != nil {
			*dst = clonePtr(src)
		}
	}
	pickStr := func(dst **string, src *string) {
		if src != nil {
			*dst = clonePtr(src)
		}
	}
	pick(&out.X, next.X)
	pick(&out.Y, next.Y)
	pick(&out.Width, next.Width)
	pick(&out.Height, next.Height)
	pick(&out.EndX, next.EndX)
	pick(&out.EndY, next.EndY)
	pickStr(&out.Content, next.Content)
	pickStr(&out.Color, next.Color)
	pickStr(&out.StrokeColor, next.StrokeColor)
	pick(&out.StrokeWidth, next.StrokeWidth)
	pickStr(&out.FillColor, next.FillColor)
	pick(&out.FontSize, next.FontSize)
	pickStr(&out.FontWeight, next.FontWeight)
	pickStr(&out.GroupID, next.GroupID)
	return out
}

// Updates 컬럼명 -> 값 맵 (gorm Updates 용)
func (p ElementPatch) Updates() map[string]any {
	m := make(map[string]any)
	if p.X != nil {
		m["x"] = *p.X
	}
	if p.Y != nil {
		m["y"] = *p.Y
	}
	if p.Width != nil {
		m["width"] = *p.Width
	}
	if p.Height != nil {
		m["height"] = *p.Height
	}
	if p.EndX != nil {
		m["end_x"] = *p.EndX
	}
	if p.EndY != nil {
		m["end_y"] = *p.EndY
	}
	if p.Content != nil {
		m["content"] = *p.Content
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	if p.StrokeColor != nil {
		m["stroke_color"] = *p.StrokeColor
	}
	if p.StrokeWidth != nil {
		m["stroke_width"] = *p.StrokeWidth
	}
	if p.FillColor != nil {
		m["fill_color"] = *p.FillColor
	}
	if p.FontSize != nil {
		m["font_size"] = *p.FontSize
	}
	if p.FontWeight != nil {
		m["font_weight"] = *p.FontWeight
	}
	if p.GroupID != nil {
		m["group_id"] = *p.GroupID
	}
	return m
}

// PatchOf builds a patch carrying e's current values for the given fields.
// Counter fields are ignored.
func PatchOf(e Element, fields []Field) ElementPatch {
	var p ElementPatch
	for _, f := range fields {
		switch f {
		case FieldX:
			p.X = Ptr(e.X)
		case FieldY:
			p.Y = Ptr(e.Y)
		case FieldWidth:
			p.Width = clonePtr(e.Width)
		case FieldHeight:
			p.Height = clonePtr(e.Height)
		case FieldEndX:
			p.EndX = clonePtr(e.EndX)
		case FieldEndY:
			p.EndY = clonePtr(e.EndY)
		case FieldContent:
			p.Content = clonePtr(e.Content)
		case FieldColor:
			p.Color = clonePtr(e.Color)
		case FieldStrokeColor:
			p.StrokeColor = clonePtr(e.StrokeColor)
		case FieldStrokeWidth:
			p.StrokeWidth = clonePtr(e.StrokeWidth)
		case FieldFillColor:
			p.FillColor = clonePtr(e.FillColor)
		case FieldFontSize:
			p.FontSize = clonePtr(e.FontSize)
		case FieldFontWeight:
			p.FontWeight = clonePtr(e.FontWeight)
		case FieldGroupID:
			p.GroupID = clonePtr(e.GroupID)
		}
	}
	return p
}

// CopyField copies field f from src into dst.
func CopyField(dst *Element, src Element, f Field) {
	switch f {
	case FieldVotes:
		dst.Votes = src.Votes
	case FieldCommentCount:
		dst.CommentCount = src.CommentCount
	case FieldX:
		dst.X = src.X
	case FieldY:
		dst.Y = src.Y
	default:
		copyOptional(dst, src, f)
	}
}

// copyOptional copies nil as well, unlike Apply.
func copyOptional(dst *Element, src Element, f Field) {
	switch f {
	case FieldWidth:
		dst.Width = clonePtr(src.Width)
	case FieldHeight:
		dst.Height = clonePtr(src.Height)
	case FieldEndX:
		dst.EndX = clonePtr(src.EndX)
	case FieldEndY:
		dst.EndY = clonePtr(src.EndY)
	case FieldContent:
		dst.Content = clonePtr(src.Content)
	case FieldColor:
		dst.Color = clonePtr(src.Color)
	case FieldStrokeColor:
		dst.StrokeColor = clonePtr(src.StrokeColor)
	case FieldStrokeWidth:
		dst.StrokeWidth = clonePtr(src.StrokeWidth)
	case FieldFillColor:
		dst.FillColor = clonePtr(src.FillColor)
	case FieldFontSize:
		dst.FontSize = clonePtr(src.FontSize)
	case FieldFontWeight:
		dst.FontWeight = clonePtr(src.FontWeight)
	case FieldGroupID:
		dst.GroupID = clonePtr(src.GroupID)
	}
}

// FieldEqual reports whether a and b hold the same value for f.
func FieldEqual(a, b Element, f Field) bool {
	switch f {
	case FieldX:
		return a.X == b.X
	case FieldY:
		return a.Y == b.Y
	case FieldWidth:
		return ptrEqual(a.Width, b.Width)
	case FieldHeight:
		return ptrEqual(a.Height, b.Height)
	case FieldEndX:
		return ptrEqual(a.EndX, b.EndX)
	case FieldEndY:
		return ptrEqual(a.EndY, b.EndY)
	case FieldContent:
		return ptrEqual(a.Content, b.Content)
	case FieldColor:
		return ptrEqual(a.Color, b.Color)
	case FieldStrokeColor:
		return ptrEqual(a.StrokeColor, b.StrokeColor)
	case FieldStrokeWidth:
		return ptrEqual(a.StrokeWidth, b.StrokeWidth)
	case FieldFillColor:
		return ptrEqual(a.FillColor, b.FillColor)
	case FieldFontSize:
		return ptrEqual(a.FontSize, b.FontSize)
	case FieldFontWeight:
		return ptrEqual(a.FontWeight, b.FontWeight)
	case FieldGroupID:
		return ptrEqual(a.GroupID, b.GroupID)
	case FieldVotes:
		return a.Votes == b.Votes
	case FieldCommentCount:
		return a.CommentCount == b.CommentCount
	}
	return true
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
