package machine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gookit/color"

	"github.com/timewinder-dev/jvmcore/cas"
	"github.com/timewinder-dev/jvmcore/vm"
)

const rule = "================================================================================"

// ErrorKind names the failure kind of an execution error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, vm.ErrNoSuchField):
		return "NoSuchFieldError"
	case errors.Is(err, vm.ErrNullPointer):
		return "NullPointerError"
	case errors.Is(err, vm.ErrClassCast):
		return "ClassCastError"
	case errors.Is(err, vm.ErrInternalFault):
		return "InternalFault"
	}
	return "Error"
}

// FormatError formats an execution error with the instruction it came from.
func FormatError(err error) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint(rule))
	b.WriteString("\n")
	b.WriteString(color.Red.Sprint("EXECUTION FAILED"))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprint(rule))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Kind:     "))
	b.WriteString(color.Yellow.Sprintf("%s\n", ErrorKind(err)))
	var ee *vm.ExecError
	if errors.As(err, &ee) {
		b.WriteString(color.Bold.Sprint("Method:   "))
		b.WriteString(fmt.Sprintf("%s\n", ee.Method))
		b.WriteString(color.Bold.Sprint("PC:       "))
		b.WriteString(fmt.Sprintf("%d\n", ee.PC))
		b.WriteString(color.Bold.Sprint("Op:       "))
		b.WriteString(fmt.Sprintf("%s\n", ee.Op))
		err = ee.Err
	}
	b.WriteString(color.Bold.Sprint("Message:  "))
	b.WriteString(color.Red.Sprintf("%s\n", err))
	b.WriteString(color.Gray.Sprint(rule))
	b.WriteString("\n")
	return b.String()
}

// FormatResult formats the outcome of a successful run.
func FormatResult(r *Result) string {
	var b strings.Builder
	b.WriteString(color.Cyan.Sprint("Method:   "))
	b.WriteString(fmt.Sprintf("%s (%d steps)\n", r.Method, r.Steps))
	b.WriteString(color.Cyan.Sprint("Returned: "))
	if r.Value == nil {
		b.WriteString("void\n")
	} else {
		b.WriteString(color.Green.Sprintf("%s\n", r.Value))
	}
	names := r.StaticNames()
	if len(names) > 0 {
		b.WriteString(color.Cyan.Sprint("Statics:\n"))
		for _, k := range names {
			b.WriteString(fmt.Sprintf("  %s = %s\n", k, r.Statics[k]))
		}
	}
	return b.String()
}

// FormatTrace lists each traced step with its snapshot hashes.
func FormatTrace(t *TraceResult) string {
	var b strings.Builder
	b.WriteString(color.Gray.Sprint(rule))
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("Execution Trace:"))
	b.WriteString("\n")
	for i, step := range t.Trace {
		b.WriteString(fmt.Sprintf("  %2d. pc %03d %-28s frame 0x%s statics 0x%s\n",
			i+1, step.PC, step.Op, step.FrameHash, step.StaticsHash))
	}
	b.WriteString(color.Gray.Sprint(rule))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Steps: %d   Unique frames: %d   Cache: %d/%d (hits %d, misses %d)\n",
		len(t.Trace), t.UniqueFrames, t.Cache.Size, t.Cache.MaxSize, t.Cache.Hits, t.Cache.Misses))
	return b.String()
}

// FormatFrameRecord renders a stored frame snapshot.
func FormatFrameRecord(rec *cas.FrameRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s pc %d after %s\n", rec.Method, rec.PC, rec.Op)
	b.WriteString("    stack:")
	for _, v := range rec.Stack {
		fmt.Fprintf(&b, " %s", formatValueRecord(v))
	}
	b.WriteString("\n    locals:")
	for i, v := range rec.Locals {
		fmt.Fprintf(&b, " [%d]=%s", i, formatValueRecord(v))
	}
	b.WriteString("\n")
	for _, o := range rec.Objects {
		fmt.Fprintf(&b, "    %s@%s {", o.Class, shortID(o.ID))
		for i, f := range o.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			name := f.Name
			if f.Class != o.Class {
				name = f.Class + "." + f.Name
			}
			fmt.Fprintf(&b, "%s: %s", name, formatValueRecord(f.Value))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatValueRecord(v cas.ValueRecord) string {
	switch v.Kind {
	case "int":
		return fmt.Sprintf("%d", v.Int)
	case "null":
		return "null"
	case "object":
		return fmt.Sprintf("%s@%s", v.Class, shortID(v.Object))
	case "class":
		return "class " + v.Class
	}
	return "-"
}
