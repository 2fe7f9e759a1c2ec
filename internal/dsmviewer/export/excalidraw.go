package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// ExcalidrawElement represents a single element in the Excalidraw scene.
type ExcalidrawElement struct {
	Type            string   `json:"type"`
	Version         int      `json:"version"`
	VersionNonce    int      `json:"versionNonce"`
	IsDeleted       bool     `json:"isDeleted"`
	ID              string   `json:"id"`
	FillStyle       string   `json:"fillStyle"`
	StrokeWidth     int      `json:"strokeWidth"`
	StrokeStyle     string   `json:"strokeStyle"`
	Roughness       int      `json:"roughness"`
	Opacity         int      `json:"opacity"`
	Angle           int      `json:"angle"`
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	StrokeColor     string   `json:"strokeColor"`
	BackgroundColor string   `json:"backgroundColor"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	Seed            int      `json:"seed"`
	GroupIds        []string `json:"groupIds"`
	Roundness       any      `json:"roundness"`
	BoundElements   []any    `json:"boundElements"`
	Updated         int64    `json:"updated"`
	Link            any      `json:"link"`
	Locked          bool     `json:"locked"`
	Text            string   `json:"text,omitempty"`
	FontSize        int      `json:"fontSize,omitempty"`
	FontFamily      int      `json:"fontFamily,omitempty"`
	TextAlign       string   `json:"textAlign,omitempty"`
	VerticalAlign   string   `json:"verticalAlign,omitempty"`
}

// ExcalidrawScene represents the full file format.
type ExcalidrawScene struct {
	Type     string              `json:"type"`
	Version  int                 `json:"version"`
	Source   string              `json:"source"`
	Elements []ExcalidrawElement `json:"elements"`
	AppState map[string]any      `json:"appState"`
	Files    map[string]any      `json:"files"`
}

// Layout constants
const (
	headerWidth = 260.0
	cellSize    = 32.0
	indentWidth = 16.0
)

// Colors per header depth, cycling for deeper trees.
var depthColors = []string{"#e6f7ff", "#f6ffed", "#fff7e6", "#fff0f6"}

const (
	cellColor  = "#ffd591"
	cycleColor = "#ff7875"
)

func shape(kind, id string, x, y, w, h float64, stroke, background string) ExcalidrawElement {
	return ExcalidrawElement{
		Type:            kind,
		Version:         1,
		ID:              id,
		FillStyle:       "solid",
		StrokeWidth:     1,
		StrokeStyle:     "solid",
		Roughness:       0,
		Opacity:         100,
		X:               x,
		Y:               y,
		StrokeColor:     stroke,
		BackgroundColor: background,
		Width:           w,
		Height:          h,
		Seed:            1,
		GroupIds:        []string{},
	}
}

func label(id, text string, x, y, w, h float64, align string) ExcalidrawElement {
	t := shape("text", id, x, y, w, h, "#000000", "transparent")
	t.Text = text
	t.FontSize = 14
	t.FontFamily = 3
	t.TextAlign = align
	t.VerticalAlign = "middle"
	return t
}

// BuildExcalidrawScene draws the matrix: a header column with the indented element
// names followed by one square cell per consumer. Cells on both sides of a cycle
// are highlighted.
func BuildExcalidrawScene(mx *Matrix) ExcalidrawScene {
	elements := []ExcalidrawElement{}
	n := len(mx.Elements)

	for row, e := range mx.Elements {
		y := float64(row) * cellSize
		indent := float64(mx.Depths[row]) * indentWidth
		bg := depthColors[mx.Depths[row]%len(depthColors)]
		id := fmt.Sprintf("row-%d", e.ID())
		elements = append(elements, shape("rectangle", id, indent, y, headerWidth-indent, cellSize, "#595959", bg))
		elements = append(elements, label(id+"-text", fmt.Sprintf("%d %s", row+1, e.Name()), indent+6, y, headerWidth-indent-12, cellSize, "left"))
	}

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			x := headerWidth + float64(col)*cellSize
			y := float64(row) * cellSize
			id := fmt.Sprintf("cell-%d-%d", mx.Elements[row].ID(), mx.Elements[col].ID())
			bg := "#ffffff"
			w := mx.Weights[row][col]
			switch {
			case row == col:
				bg = "#d9d9d9"
			case w > 0 && mx.Weights[col][row] > 0:
				bg = cycleColor
			case w > 0:
				bg = cellColor
			}
			elements = append(elements, shape("rectangle", id, x, y, cellSize, cellSize, "#bfbfbf", bg))
			if w > 0 {
				elements = append(elements, label(id+"-text", fmt.Sprint(w), x, y, cellSize, cellSize, "center"))
			}
		}
	}

	return ExcalidrawScene{
		Type:     "excalidraw",
		Version:  2,
		Source:   "dsmviewer",
		Elements: elements,
		AppState: map[string]any{"viewBackgroundColor": "#ffffff"},
		Files:    map[string]any{},
	}
}

// WriteExcalidraw encodes the matrix of the model as an Excalidraw scene.
func WriteExcalidraw(w io.Writer, m *model.Model) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildExcalidrawScene(BuildMatrix(m.Elements())))
}

// ExportExcalidraw generates an Excalidraw JSON file from the model.
func ExportExcalidraw(m *model.Model, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteExcalidraw(file, m)
}

// RenderText draws the matrix as plain text, one line per provider row.
func RenderText(mx *Matrix) string {
	var b strings.Builder
	for row, e := range mx.Elements {
		name := strings.Repeat("  ", mx.Depths[row]) + e.Name()
		fmt.Fprintf(&b, "%3d %-30.30s |", row+1, name)
		for col := range mx.Elements {
			switch w := mx.Weights[row][col]; {
			case row == col:
				b.WriteString("  ■")
			case w == 0:
				b.WriteString("   ")
			default:
				fmt.Fprintf(&b, "%3d", w)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
