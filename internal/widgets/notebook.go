package widgets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

// EventNotebookRendered is emitted once a notebook is on the page.
const EventNotebookRendered = "notebook:rendered"

// Notebook cell types.
const (
	CellMarkdown = "markdown"
	CellCode     = "code"
	CellRaw      = "raw"
)

// Lines is notebook text stored either as one string or as a list of lines.
type Lines string

// UnmarshalJSON accepts both encodings.
func (l *Lines) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Lines(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("notebook text: %w", err)
	}
	*l = Lines(strings.Join(parts, ""))
	return nil
}

// NotebookDocument is the subset of the .ipynb format the viewer renders.
type NotebookDocument struct {
	Cells    []Cell `json:"cells"`
	Metadata struct {
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
}

// Cell is one notebook cell.
type Cell struct {
	Type    string   `json:"cell_type"`
	Source  Lines    `json:"source"`
	Outputs []Output `json:"outputs,omitempty"`
}

// Output is one code cell output.
type Output struct {
	Type   string                     `json:"output_type"`
	Name   string                     `json:"name,omitempty"`
	Text   Lines                      `json:"text,omitempty"`
	Data   map[string]json.RawMessage `json:"data,omitempty"`
	EName  string                     `json:"ename,omitempty"`
	EValue string                     `json:"evalue,omitempty"`
}

// ParseNotebook decodes an .ipynb document.
func ParseNotebook(raw []byte) (*NotebookDocument, error) {
	var nb NotebookDocument
	if err := json.Unmarshal(raw, &nb); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	return &nb, nil
}

// Notebook renders an embedded .ipynb document. The document is read from
// the <script data-notebook-src> element inside the root, or from the
// "source" option. Code cell outputs can be collapsed with their toggle
// button; the "collapsed" option starts them hidden.
type Notebook struct {
	*component.Base

	mu       sync.Mutex
	doc      *NotebookDocument
	language string
}

// NewNotebook is the notebook factory.
func NewNotebook(b *component.Base) component.Component {
	return &Notebook{Base: b}
}

// Setup parses and renders the notebook. A malformed document fails init.
func (n *Notebook) Setup(ctx context.Context) error {
	raw := stringOption(n.Config(), "source", "")
	if src := n.Root().Query("script[data-notebook-src]"); src != nil {
		raw = src.Text()
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("notebook has no source")
	}

	nb, err := ParseNotebook([]byte(raw))
	if err != nil {
		return err
	}
	language := nb.Metadata.LanguageInfo.Name
	if language == "" {
		language = "python"
	}

	markup, err := renderCells(ctx, nb, language)
	if err != nil {
		return err
	}

	target := n.Root().Query("[data-notebook-cells]")
	if target == nil {
		target = n.Document().CreateElement("div")
		target.SetAttr("class", "nb-cells")
		target.SetAttr("data-notebook-cells", "")
		n.Root().AppendChild(target)
	}
	if err := target.SetInnerHTML(markup); err != nil {
		return err
	}

	n.mu.Lock()
	n.doc, n.language = nb, language
	n.mu.Unlock()

	if collapsed, _ := n.Config().Option("collapsed", false).(bool); collapsed {
		for i, cell := range nb.Cells {
			if cell.Type == CellCode && len(cell.Outputs) > 0 {
				n.SetOutputVisible(i, false)
			}
		}
	}

	n.On("click", func(ev *dom.Event) {
		if ev.Target == nil {
			return
		}
		if btn := ev.Target.Closest("[data-output-toggle]"); btn != nil {
			if i, err := strconv.Atoi(btn.GetAttr("data-output-toggle")); err == nil {
				n.ToggleOutput(i)
			}
		}
	})

	n.Emit(EventNotebookRendered, len(nb.Cells))
	return nil
}

// Teardown is a no-op; rendered cells stay on the page.
func (n *Notebook) Teardown() {}

// Cells returns the rendered cells.
func (n *Notebook) Cells() []Cell {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.doc == nil {
		return nil
	}
	return n.doc.Cells
}

// Language returns the kernel language used to label code cells.
func (n *Notebook) Language() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.language
}

// OutputVisible reports whether the outputs of cell i are shown.
func (n *Notebook) OutputVisible(i int) bool {
	out := n.Root().Query(fmt.Sprintf(`[data-output="%d"]`, i))
	return out != nil && !out.HasAttr("hidden")
}

// ToggleOutput flips the visibility of cell i's outputs and returns the new
// visibility. Cells without outputs report false.
func (n *Notebook) ToggleOutput(i int) bool {
	visible := !n.OutputVisible(i)
	return n.SetOutputVisible(i, visible) && visible
}

// SetOutputVisible shows or hides cell i's outputs. It reports false when
// the cell has no outputs.
func (n *Notebook) SetOutputVisible(i int, visible bool) bool {
	out := n.Root().Query(fmt.Sprintf(`[data-output="%d"]`, i))
	if out == nil {
		return false
	}
	btn := n.Root().Query(fmt.Sprintf(`[data-output-toggle="%d"]`, i))
	if visible {
		out.RemoveAttr("hidden")
	} else {
		out.SetAttr("hidden", "")
	}
	if btn != nil {
		btn.SetAttr("aria-expanded", strconv.FormatBool(visible))
		if visible {
			btn.SetText("Hide output")
		} else {
			btn.SetText("Show output")
		}
	}
	return true
}

func renderCells(ctx context.Context, nb *NotebookDocument, language string) (string, error) {
	var sb strings.Builder
	for i, cell := range nb.Cells {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		switch cell.Type {
		case CellMarkdown:
			fmt.Fprintf(&sb, `<div class="nb-cell nb-markdown" data-cell="%d">%s</div>`, i, renderMarkdown(string(cell.Source)))
		case CellCode:
			fmt.Fprintf(&sb, `<div class="nb-cell nb-code" data-cell="%d"><pre><code class="language-%s">%s</code></pre>`,
				i, html.EscapeString(language), html.EscapeString(string(cell.Source)))
			if len(cell.Outputs) > 0 {
				fmt.Fprintf(&sb, `<button type="button" class="nb-toggle" data-output-toggle="%d" aria-expanded="true">Hide output</button>`, i)
				fmt.Fprintf(&sb, `<div class="nb-output" data-output="%d">`, i)
				for _, out := range cell.Outputs {
					sb.WriteString(renderOutput(out))
				}
				sb.WriteString(`</div>`)
			}
			sb.WriteString(`</div>`)
		default:
			fmt.Fprintf(&sb, `<div class="nb-cell nb-raw" data-cell="%d"><pre>%s</pre></div>`, i, html.EscapeString(string(cell.Source)))
		}
	}
	return sb.String(), nil
}

func renderOutput(out Output) string {
	switch out.Type {
	case "stream":
		return fmt.Sprintf(`<pre class="nb-stream nb-%s">%s</pre>`, html.EscapeString(out.Name), html.EscapeString(string(out.Text)))
	case "error":
		return fmt.Sprintf(`<pre class="nb-error">%s: %s</pre>`, html.EscapeString(out.EName), html.EscapeString(out.EValue))
	}
	if rich, ok := out.text("text/html"); ok {
		return `<div class="nb-html">` + sanitizer().Sanitize(rich) + `</div>`
	}
	if md, ok := out.text("text/markdown"); ok {
		return `<div class="nb-html">` + renderMarkdown(md) + `</div>`
	}
	if plain, ok := out.text("text/plain"); ok {
		return `<pre class="nb-result">` + html.EscapeString(plain) + `</pre>`
	}
	return ""
}

// text returns the textual payload stored under mime. Non-text payloads
// such as application/json objects report false.
func (o Output) text(mime string) (string, bool) {
	raw, ok := o.Data[mime]
	if !ok {
		return "", false
	}
	var l Lines
	if err := l.UnmarshalJSON(raw); err != nil {
		return "", false
	}
	return string(l), true
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts notebook markdown to sanitized HTML. Input that
// fails to convert is shown escaped.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return sanitizer().Sanitize(buf.String())
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
		policy = p
	})
	return policy
}
