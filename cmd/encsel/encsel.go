package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/tetratelabs/encsel/internal/encsel"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/isa/x86"
	"github.com/tetratelabs/encsel/internal/logging"
	"github.com/tetratelabs/encsel/internal/settings"
	"github.com/tetratelabs/encsel/internal/targets"
	"github.com/tetratelabs/encsel/internal/version"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "lookup":
		doLookup(flag.Args()[1:], stdOut, stdErr, exit)
	case "branch":
		doBranch(flag.Args()[1:], stdOut, stdErr, exit)
	case "settings":
		doSettings(flag.Args()[1:], stdOut, stdErr, exit)
	case "dump":
		doDump(flag.Args()[1:], stdOut, stdErr, exit)
	case "validate":
		if err := targets.Validate(); err != nil {
			fmt.Fprintf(stdErr, "invalid tables: %v\n", err)
			exit(1)
		}
		fmt.Fprintln(stdOut, "ok")
		exit(0)
	case "version":
		fmt.Fprintln(stdOut, version.GetEncselVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

// targetFlags are the flags of subcommands which build a target.
type targetFlags struct {
	isa    *string
	native *bool
	config *string
	set    sliceFlag
}

func addTargetFlags(flags *flag.FlagSet) *targetFlags {
	f := &targetFlags{
		isa:    flags.String("isa", "", "name of the target: i686 or x86_64. Defaults to the isa of -config, or x86_64."),
		native: flags.Bool("native", false, "target the host CPU with its features enabled"),
		config: flags.String("config", "", "path to a YAML settings file"),
	}
	flags.Var(&f.set, "set", "setting to change, in the form of <name>[=<bool>], or preset to enable. "+
		"This may be specified multiple times, and applies after -config.")
	return f
}

// build returns the target described by the flags.
func (f *targetFlags) build() (isa.TargetISA, error) {
	var cfg *settings.Config
	if *f.config != "" {
		var err error
		if cfg, err = settings.LoadConfig(*f.config); err != nil {
			return nil, err
		}
	}

	var b *targets.Builder
	var err error
	if *f.native {
		if *f.isa != "" {
			return nil, errors.New("-isa and -native are exclusive")
		}
		b, err = targets.Native()
	} else {
		name := *f.isa
		if name == "" && cfg != nil {
			name = cfg.ISA
		}
		if name == "" {
			name = "x86_64"
		}
		b, err = targets.Lookup(name)
	}
	if err != nil {
		return nil, err
	}

	if cfg != nil {
		if err = cfg.Apply(b.Settings()); err != nil {
			return nil, err
		}
	}
	for _, s := range f.set {
		name, value := s, true
		if i := strings.IndexByte(s, '='); i != -1 {
			name = s[:i]
			if value, err = strconv.ParseBool(s[i+1:]); err != nil {
				return nil, fmt.Errorf("invalid setting %q: %w", s, err)
			}
		}
		if value {
			err = b.Settings().Enable(name)
		} else {
			err = b.Settings().Set(name, false)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

func doLookup(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("lookup", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	tf := addTargetFlags(flags)

	var imm int64
	flags.Int64Var(&imm, "imm", 0, "immediate operand of the instruction")

	var refAsm bool
	flags.BoolVar(&refAsm, "asm", false, "print the bytes of the reference instruction from the Go assembler")

	var logScopes logScopesFlag
	flags.Var(&logScopes, "logscopes",
		"A comma-separated list of selection scopes to log to stderr. "+
			"This may be specified multiple times. Supported values: all,lookup,legalize,relax")

	_ = flags.Parse(args)

	if help {
		printLookupUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing instruction")
		printLookupUsage(stdErr, flags)
		exit(1)
	}

	op, ctrlTy, err := parseInstruction(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "invalid instruction: %v\n", err)
		exit(1)
	}
	argTypes := make([]ir.Type, 0, flags.NArg()-1)
	for _, a := range flags.Args()[1:] {
		ty, ok := ir.TypeByName(a)
		if !ok {
			fmt.Fprintf(stdErr, "invalid argument type: %q\n", a)
			exit(1)
		}
		argTypes = append(argTypes, ty)
	}

	target, err := tf.build()
	if err != nil {
		fmt.Fprintf(stdErr, "invalid target: %v\n", err)
		exit(1)
	}

	fn := ir.NewFunction("lookup")
	blk := fn.AddBlock()
	fnArgs := make([]ir.Value, len(argTypes))
	for i, ty := range argTypes {
		fnArgs[i] = fn.Param(ty)
	}
	inst := fn.Ins(blk, op, ctrlTy, fnArgs...).WithImm(uint64(imm))
	if op.IsBranch() {
		inst.WithTarget(fn.AddBlock().ID())
	}

	ei := target.EncInfo()
	fmt.Fprintf(stdOut, "%s on %s:\n", inst, target.Name())
	encs := target.LegalEncodings(fn, inst, fn.CtrlTypevar(inst))
	var found bool
	for {
		enc, ok := encs.Next()
		if !ok {
			break
		}
		found = true
		fmt.Fprintf(stdOut, "  %-24s %d bytes\n", ei.Display(enc), ei.ByteSize(enc))
	}
	if !found {
		fmt.Fprintf(stdOut, "  legalize: %s\n", encs.Legalize())
	}

	if refAsm {
		if !x86.HasReference(op, ctrlTy) {
			fmt.Fprintf(stdErr, "no reference instruction for %s\n", flags.Arg(0))
			exit(1)
		}
		ref, err := x86.ReferenceBytes(op, ctrlTy)
		if err != nil {
			fmt.Fprintf(stdErr, "error assembling reference: %v\n", err)
			exit(1)
		}
		fmt.Fprintf(stdOut, "reference: % x\n", ref)
	}

	cfg := encsel.NewConfig()
	if scopes := logging.LogScopes(logScopes); scopes != 0 {
		cfg = cfg.WithLogger(logging.NewLogger(stdErr, scopes))
	}
	r, err := encsel.Select(cfg, target, fn)
	if err != nil {
		fmt.Fprintf(stdErr, "error selecting encodings: %v\n", err)
		exit(1)
	}
	fmt.Fprintln(stdOut)
	fmt.Fprint(stdOut, r.Format(ei))
	exit(0)
}

// parseInstruction parses "<opcode>[.<type>]".
func parseInstruction(s string) (ir.Opcode, ir.Type, error) {
	name, tyName, hasType := strings.Cut(s, ".")
	op, ok := ir.OpcodeByName(name)
	if !ok {
		return ir.OpcodeInvalid, ir.TypeInvalid, fmt.Errorf("unknown opcode %q", name)
	}
	if !op.IsPolymorphic() {
		if hasType {
			return ir.OpcodeInvalid, ir.TypeInvalid, fmt.Errorf("%s has no controlling type", name)
		}
		return op, ir.TypeInvalid, nil
	}
	if !hasType {
		return ir.OpcodeInvalid, ir.TypeInvalid, fmt.Errorf("%s needs a controlling type, e.g. %s.i32", name, name)
	}
	ty, ok := ir.TypeByName(tyName)
	if !ok {
		return ir.OpcodeInvalid, ir.TypeInvalid, fmt.Errorf("unknown type %q", tyName)
	}
	return op, ty, nil
}

func doBranch(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("branch", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	isaName := flags.String("isa", "x86_64", "name of the target: i686 or x86_64")

	_ = flags.Parse(args)

	if help {
		printBranchUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() != 3 {
		fmt.Fprintln(stdErr, "expected a recipe, a branch offset and a destination offset")
		printBranchUsage(stdErr, flags)
		exit(1)
	}

	var offsets [2]isa.CodeOffset
	for i, a := range flags.Args()[1:] {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid offset: %v\n", err)
			exit(1)
		}
		offsets[i] = isa.CodeOffset(v)
	}

	b, err := targets.Lookup(*isaName)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid target: %v\n", err)
		exit(1)
	}
	ei := b.Finish().EncInfo()

	recipe := flags.Arg(0)
	br, ok := findBranchRange(ei, recipe)
	if !ok {
		fmt.Fprintf(stdErr, "recipe %s has no branch range\n", recipe)
		exit(1)
	}

	branch, dest := offsets[0], offsets[1]
	if br.Contains(branch, dest) {
		fmt.Fprintf(stdOut, "%s at %d reaches %d\n", recipe, branch, dest)
	} else {
		fmt.Fprintf(stdOut, "%s at %d does not reach %d: the %d bit displacement is relative to %d\n",
			recipe, branch, dest, br.Bits, branch+isa.CodeOffset(br.Origin))
	}
	exit(0)
}

func findBranchRange(ei *isa.EncInfo, recipe string) (isa.BranchRange, bool) {
	for i, n := range ei.Names {
		if n == recipe {
			if r := ei.Sizing[i].BranchRange; r != nil {
				return *r, true
			}
			break
		}
	}
	return isa.BranchRange{}, false
}

func doSettings(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("settings", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	tf := addTargetFlags(flags)

	_ = flags.Parse(args)

	if help {
		printSettingsUsage(stdErr, flags)
		exit(0)
	}

	target, err := tf.build()
	if err != nil {
		fmt.Fprintf(stdErr, "invalid target: %v\n", err)
		exit(1)
	}
	fmt.Fprint(stdOut, target.Flags())
	exit(0)
}

func doDump(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("dump", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	isaName := flags.String("isa", "x86_64", "name of the target: i686 or x86_64")
	regs := flags.Bool("regs", false, "dump the registers instead of the recipes")

	_ = flags.Parse(args)

	if help {
		printDumpUsage(stdErr, flags)
		exit(0)
	}

	b, err := targets.Lookup(*isaName)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid target: %v\n", err)
		exit(1)
	}
	target := b.Finish()

	dumper := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, DisableMethods: true}
	if *regs {
		dumper.Fdump(stdOut, target.RegInfo())
	} else {
		dumper.Fdump(stdOut, target.EncInfo())
	}
	exit(0)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "encsel CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  encsel <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  lookup\tLists the legal encodings of an instruction")
	fmt.Fprintln(stdErr, "  branch\tChecks whether a branch recipe reaches a destination")
	fmt.Fprintln(stdErr, "  settings\tDisplays the settings of a target")
	fmt.Fprintln(stdErr, "  dump\t\tDumps the recipes or registers of a target")
	fmt.Fprintln(stdErr, "  validate\tValidates the generated encoding tables")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of encsel CLI")
}

func printLookupUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "encsel CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  encsel lookup <options> <opcode>[.<type>] [<argument types>]")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printBranchUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "encsel CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  encsel branch <options> <recipe> <branch offset> <destination offset>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printSettingsUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "encsel CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  encsel settings <options>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printDumpUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "encsel CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  encsel dump <options>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

type sliceFlag []string

func (f *sliceFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *sliceFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}

type logScopesFlag logging.LogScopes

func (f *logScopesFlag) String() string {
	return logging.LogScopes(*f).String()
}

func (f *logScopesFlag) Set(input string) error {
	scopes, err := logging.ParseLogScopes(input)
	if err != nil {
		return err
	}
	*f |= logScopesFlag(scopes)
	return nil
}
