package agent

import (
	"fmt"
	"strconv"

	"github.com/threatmesh/threatmesh/core"
)

// shapeContent maps a recovered JSON value into the section content variant
// demanded by the template type. Coercion is tolerant about scalar types
// (numbers rendered into table cells, bare strings for text) but strict
// about overall shape.
func shapeContent(t core.TemplateType, value any) (core.SectionContent, error) {
	switch t {
	case core.TemplateTable:
		return shapeTable(value)
	case core.TemplateChart:
		return shapeChart(value)
	case core.TemplateDiagram:
		return shapeDiagram(value)
	case core.TemplateList:
		return shapeList(value)
	case core.TemplateText:
		return shapeText(value)
	default:
		return nil, fmt.Errorf("unsupported template type %q", t)
	}
}

func shapeTable(value any) (core.SectionContent, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object with headers/rows, got %T", value)
	}
	headers, err := stringSlice(obj["headers"])
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	rawRows, ok := obj["rows"].([]any)
	if !ok {
		return nil, fmt.Errorf("rows: expected array, got %T", obj["rows"])
	}
	rows := make([][]string, 0, len(rawRows))
	for i, r := range rawRows {
		cells, ok := r.([]any)
		if !ok {
			return nil, fmt.Errorf("rows[%d]: expected array, got %T", i, r)
		}
		row := make([]string, len(cells))
		for j, c := range cells {
			row[j] = stringify(c)
		}
		rows = append(rows, row)
	}
	return core.TableContent{Headers: headers, Rows: rows}, nil
}

func shapeChart(value any) (core.SectionContent, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected chart object, got %T", value)
	}
	labels, _ := stringSlice(obj["labels"])
	series := make(map[string][]float64)
	if raw, ok := obj["series"].(map[string]any); ok {
		for name, vals := range raw {
			nums, ok := vals.([]any)
			if !ok {
				continue
			}
			fs := make([]float64, 0, len(nums))
			for _, n := range nums {
				if f, ok := n.(float64); ok {
					fs = append(fs, f)
				}
			}
			series[name] = fs
		}
	}
	chartType, _ := obj["chart_type"].(string)
	if chartType == "" {
		chartType = "bar"
	}
	return core.ChartContent{ChartType: chartType, Labels: labels, Series: series}, nil
}

func shapeDiagram(value any) (core.SectionContent, error) {
	switch v := value.(type) {
	case map[string]any:
		def, _ := v["definition"].(string)
		if def == "" {
			return nil, fmt.Errorf("diagram definition missing")
		}
		format, _ := v["format"].(string)
		if format == "" {
			format = "mermaid"
		}
		return core.DiagramContent{Format: format, Definition: def}, nil
	case string:
		return core.DiagramContent{Format: "mermaid", Definition: v}, nil
	default:
		return nil, fmt.Errorf("expected diagram object or string, got %T", value)
	}
}

func shapeList(value any) (core.SectionContent, error) {
	switch v := value.(type) {
	case map[string]any:
		items, err := stringSlice(v["items"])
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		return core.ListContent{Items: items}, nil
	case []any:
		items := make([]string, len(v))
		for i, it := range v {
			items[i] = stringify(it)
		}
		return core.ListContent{Items: items}, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}
}

func shapeText(value any) (core.SectionContent, error) {
	switch v := value.(type) {
	case map[string]any:
		text, _ := v["text"].(string)
		if text == "" {
			return nil, fmt.Errorf("text field missing")
		}
		return core.TextContent{Text: text}, nil
	case string:
		return core.TextContent{Text: v}, nil
	default:
		return nil, fmt.Errorf("expected text, got %T", value)
	}
}

func stringSlice(value any) ([]string, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

// extractArtifacts derives artifact descriptors from a completed section:
// every list item and every table row's first cell become a referenceable
// artifact for downstream cross-framework analysis.
func extractArtifacts(sec core.SectionResult) []core.ArtifactDescriptor {
	if sec.Status != core.SectionCompleted || sec.Content == nil {
		return nil
	}
	var out []core.ArtifactDescriptor
	switch c := sec.Content.(type) {
	case core.ListContent:
		for i, item := range c.Items {
			out = append(out, core.ArtifactDescriptor{
				ID:        fmt.Sprintf("%s-%d", sec.ID, i),
				Type:      "finding",
				Name:      item,
				SectionID: sec.ID,
			})
		}
	case core.TableContent:
		for i, row := range c.Rows {
			if len(row) == 0 {
				continue
			}
			out = append(out, core.ArtifactDescriptor{
				ID:        fmt.Sprintf("%s-%d", sec.ID, i),
				Type:      "entry",
				Name:      row[0],
				SectionID: sec.ID,
			})
		}
	}
	return out
}
