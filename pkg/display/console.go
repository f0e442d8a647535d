package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

const clearLine = "\x1b[1A\x1b[2K"

// Mutable
type consoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	theme   *Theme
	verbose bool
	tasks   []*consoleTask
	drawn   int
}

// NewConsole creates a Display that writes to standard error.
func NewConsole() Display {
	return NewWriterDisplay(os.Stderr)
}

// NewWriterDisplay creates a Display that writes to the provided io.Writer.
func NewWriterDisplay(w io.Writer) Display {
	return &consoleDisplay{
		out:   w,
		theme: DefaultTheme(),
	}
}

func (d *consoleDisplay) StartTask(name string) Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := &consoleTask{d: d, name: name}
	d.clearLocked()
	d.tasks = append(d.tasks, t)
	d.drawLocked()
	return t
}

func (d *consoleDisplay) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.verbose {
		return
	}
	d.printAboveLocked(d.theme.Styled(d.theme.Dim, msg) + "\n")
}

// Print writes a message directly to the output writer.
func (d *consoleDisplay) Print(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printAboveLocked(msg)
}

func (d *consoleDisplay) Warn(title, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	head := d.theme.Styled(d.theme.Yellow.Bold(true), d.theme.IconWarn+" "+title)
	d.printAboveLocked(head + "\n" + body + "\n")
}

func (d *consoleDisplay) SetVerbose(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verbose = v
}

// Close finishes any task that is still shown.
func (d *consoleDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
	d.tasks = nil
}

// RenderOutput displays structured data from an Output struct to the console.
func (d *consoleDisplay) RenderOutput(out *common.Output) {
	if out == nil {
		return
	}

	if out.Message != "" {
		d.Print(fmt.Sprintln(out.Message))
	}

	for _, kv := range out.KV {
		d.Print(fmt.Sprintf("%-16s %s\n", d.theme.Styled(d.theme.Bold, kv.Key+":"), kv.Value))
	}

	if out.Table != nil {
		d.renderTable(out.Table)
	}
}

func (d *consoleDisplay) renderTable(t *common.Table) {
	if len(t.Header) == 0 {
		return
	}

	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range t.Header {
		fmt.Fprintf(&sb, "%-*s  ", widths[i], h)
	}
	d.Print(d.theme.Styled(d.theme.Bold, strings.TrimRight(sb.String(), " ")) + "\n")

	totalWidth := 0
	for _, w := range widths {
		totalWidth += w + 2
	}
	d.Print(strings.Repeat("-", totalWidth) + "\n")

	for _, row := range t.Rows {
		sb.Reset()
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&sb, "%-*s  ", widths[i], cell)
			}
		}
		d.Print(strings.TrimRight(sb.String(), " ") + "\n")
	}
}

// printAboveLocked writes msg above the task lines and redraws them.
func (d *consoleDisplay) printAboveLocked(msg string) {
	d.clearLocked()
	fmt.Fprint(d.out, msg)
	d.drawLocked()
}

func (d *consoleDisplay) clearLocked() {
	fmt.Fprint(d.out, strings.Repeat(clearLine, d.drawn))
	d.drawn = 0
}

func (d *consoleDisplay) drawLocked() {
	for _, t := range d.tasks {
		fmt.Fprintln(d.out, t.line(d.theme))
		d.drawn++
	}
}

func (d *consoleDisplay) remove(t *consoleTask) {
	for i, other := range d.tasks {
		if other == t {
			d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
			return
		}
	}
}

// Mutable
type consoleTask struct {
	d       *consoleDisplay
	name    string
	stage   string
	target  string
	percent int
	message string
}

func (t *consoleTask) line(th *Theme) string {
	var sb strings.Builder
	sb.WriteString(th.Styled(th.Cyan, "["+t.name+"]"))
	if t.stage != "" {
		sb.WriteString(" " + th.Styled(th.Bold, t.stage))
	}
	if t.target != "" {
		sb.WriteString(" " + th.Styled(th.Dim, t.target))
	}
	if t.percent > 0 {
		fmt.Fprintf(&sb, " %d%%", t.percent)
	}
	if t.message != "" {
		sb.WriteString(" " + t.message)
	}
	return sb.String()
}

func (t *consoleTask) Log(msg string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if !t.d.verbose {
		return
	}
	t.d.printAboveLocked(fmt.Sprintf("%s %s\n", t.d.theme.Styled(t.d.theme.Dim, "["+t.name+"]"), msg))
}

func (t *consoleTask) SetStage(name string, target string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.stage = name
	t.target = target
	t.percent = 0
	t.message = ""
	t.d.clearLocked()
	t.d.drawLocked()
}

func (t *consoleTask) Progress(percent int, message string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.percent = percent
	t.message = message
	t.d.clearLocked()
	t.d.drawLocked()
}

func (t *consoleTask) Done() {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.clearLocked()
	t.d.remove(t)
	th := t.d.theme
	fmt.Fprintf(t.d.out, "%s %s\n", th.Styled(th.Cyan, "["+t.name+"]"), th.Styled(th.Green, th.IconOK+" Done"))
	t.d.drawLocked()
}
