// Command dyndshape exercises the type-creation API end to end: it
// builds a handful of types, prints their datashape, round-trips that
// string back through the parser, and times a kernel build + invoke.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"dynd/pkg/assign"
	"dynd/pkg/kernel"
	"dynd/pkg/types"
)

var verbose = flag.Bool("v", false, "print round-trip and timing detail for every type")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dyndshape - type/kernel demonstrator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [-v]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	color := isatty.IsTerminal(os.Stdout.Fd())

	demos, err := buildDemoTypes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dyndshape: %v\n", err)
		os.Exit(1)
	}

	exit := 0
	for _, d := range demos {
		if err := runDemo(d, color); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", d.name, err)
			exit = 1
		}
	}
	os.Exit(exit)
}

type demoType struct {
	name string
	t    types.TypeRef
}

func buildDemoTypes() ([]demoType, error) {
	fixedStr, err := types.NewFixedString(16, types.EncodingUTF8)
	if err != nil {
		return nil, fmt.Errorf("build fixedstring: %w", err)
	}
	point, err := types.NewCStruct([]types.StructField{
		{Name: "x", Type: types.Builtin(types.Int32)},
		{Name: "y", Type: types.Builtin(types.Int32)},
	})
	if err != nil {
		return nil, fmt.Errorf("build cstruct: %w", err)
	}
	row, err := types.NewFixedDim(3, types.Builtin(types.Float64))
	if err != nil {
		return nil, fmt.Errorf("build fixeddim: %w", err)
	}

	return []demoType{
		{"int32", types.Builtin(types.Int32)},
		{"fixedstring[16]", types.Extended(fixedStr)},
		{"cstruct{x,y: int32}", types.Extended(point)},
		{"3, float64", types.Extended(row)},
	}, nil
}

// runDemo prints d's datashape, round-trips it through the parser,
// checks the round trip reproduces an equal type, and times a
// same-type assignment kernel's build and 1000 invokes.
func runDemo(d demoType, color bool) error {
	shape := types.Print(d.t)
	printHeading(d.name, color)

	reparsed, err := types.Parse(shape)
	if err != nil {
		return fmt.Errorf("round-trip parse %q: %w", shape, err)
	}
	if !reparsed.Equal(d.t) {
		return fmt.Errorf("round-trip mismatch: %q -> %s, not equal to original", shape, types.Print(reparsed))
	}
	fmt.Printf("  datashape: %s\n", shape)
	if *verbose {
		fmt.Printf("  round-trip: ok (%s)\n", types.Print(reparsed))
	}

	buildDur, invokeDur, err := timeIdentityAssignment(d.t)
	if err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	fmt.Printf("  kernel build: %s, invoke: %s\n", buildDur, invokeDur)
	return nil
}

// timeIdentityAssignment builds a dst<-src kernel assigning t to
// itself, invokes it 1000 times to amortize timer noise, and reports
// the build duration and the mean duration of one invoke.
func timeIdentityAssignment(t types.TypeRef) (buildDur, invokeDur time.Duration, err error) {
	dstMeta := make([]byte, t.MetadataSize())
	srcMeta := make([]byte, t.MetadataSize())
	if t.IsExtended() {
		if err := t.Extension().MetadataDefaultConstruct(dstMeta, nil); err != nil {
			return 0, 0, fmt.Errorf("construct dst metadata: %w", err)
		}
		defer t.Extension().MetadataDestruct(dstMeta)
		if err := t.Extension().MetadataDefaultConstruct(srcMeta, nil); err != nil {
			return 0, 0, fmt.Errorf("construct src metadata: %w", err)
		}
		defer t.Extension().MetadataDestruct(srcMeta)
	}

	start := time.Now()
	b := kernel.NewBuilder()
	if _, err := assign.BuildAssignmentKernel(b, 0, t, dstMeta, t, srcMeta, kernel.SingleRequest, types.ErrNone, types.DefaultEvalContext); err != nil {
		return 0, 0, fmt.Errorf("build assignment kernel: %w", err)
	}
	k := b.Build()
	defer k.Drop()
	buildDur = time.Since(start)

	dst := make([]byte, t.DataSize())
	src := make([]byte, t.DataSize())

	const reps = 1000
	start = time.Now()
	for i := 0; i < reps; i++ {
		if err := assign.SafeInvokeSingle(k, dst, src); err != nil {
			return buildDur, 0, fmt.Errorf("invoke: %w", err)
		}
	}
	invokeDur = time.Since(start) / reps
	return buildDur, invokeDur, nil
}

const ansiBold = "\x1b[1m"
const ansiReset = "\x1b[0m"

func printHeading(name string, color bool) {
	if color {
		fmt.Printf("%s%s%s\n", ansiBold, name, ansiReset)
		return
	}
	fmt.Println(name)
}
