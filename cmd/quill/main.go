// Quill CLI - the main entry point for compiling and running Quill programs
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/quill-lang/quill/cache"
	"github.com/quill-lang/quill/compiler"
	"github.com/quill-lang/quill/manifest"
	"github.com/quill-lang/quill/vm"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")
	disasm := flag.Bool("disasm", false, "Print a disassembly listing instead of executing")
	build := flag.Bool("build", false, "Compile to a code image file instead of executing")
	buildOut := flag.String("o", "", "Image output path for -build (default: quill.toml [build] output, else <source>.qlbc)")
	budget := flag.Int("budget", 0, "Step budget per run (overrides quill.toml; 0 = use manifest, negative = unbounded)")
	noCache := flag.Bool("no-cache", false, "Skip the compiled-code cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quill [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a .ql source file, or runs a prebuilt .qlbc code image.\n")
		fmt.Fprintf(os.Stderr, "Settings are read from quill.toml in the working directory when present.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quill main.ql                 # Compile and run\n")
		fmt.Fprintf(os.Stderr, "  quill -disasm main.ql         # Show the compiled bytecode\n")
		fmt.Fprintf(os.Stderr, "  quill -build main.ql          # Compile to main.qlbc\n")
		fmt.Fprintf(os.Stderr, "  quill main.qlbc               # Run a prebuilt image\n")
		fmt.Fprintf(os.Stderr, "  quill -budget 10000 main.ql   # Cap execution at 10000 steps\n")
	}
	flag.Parse()

	man, err := manifest.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := man.Log.Verbosity
	if *verbosity > level {
		level = *verbosity
	}
	commonlog.Configure(level, nil)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	code, err := loadCode(path, man, *noCache, *verbosity > 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *disasm {
		fmt.Print(vm.Disassemble(code))
		return
	}

	if *build {
		out := *buildOut
		if out == "" {
			out = man.Build.Output
		}
		if out == "" {
			out = strings.TrimSuffix(path, ".ql") + ".qlbc"
		}
		if err := vm.WriteCodeFile(out, code); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *verbosity > 0 {
			fmt.Printf("Wrote %s\n", out)
		}
		return
	}

	steps := *budget
	if steps == 0 {
		steps = man.Runtime.StepBudget
	}
	if steps == 0 {
		steps = vm.Unbounded
	}

	machine := vm.New()
	if man.Runtime.StackLimit > 0 {
		machine.SetMaxStackDepth(man.Runtime.StackLimit)
	}

	thread := machine.Load(code)
	done, err := machine.Execute(thread, steps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !done {
		fmt.Fprintf(os.Stderr, "Error: step budget of %d exhausted\n", steps)
		os.Exit(1)
	}
}

// loadCode produces a Code object from either a source file or a
// prebuilt image, consulting the cache for source files.
func loadCode(path string, man *manifest.Manifest, noCache, verbose bool) (*vm.Code, error) {
	if strings.HasSuffix(path, ".qlbc") {
		return vm.ReadCodeFile(path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	useCache := !noCache && !man.Cache.Disabled
	var store *cache.Store
	if useCache {
		store, err = cache.Open(man.CachePath())
		if err != nil {
			// A broken cache never blocks a run
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	key := cache.Hash(src)
	if store != nil {
		image, ok, err := store.Get(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else if ok {
			if verbose {
				fmt.Printf("Cache hit for %s\n", path)
			}
			code, err := vm.UnmarshalImage(image)
			if err == nil {
				return code, nil
			}
			// Stale or corrupt entry, fall through to a fresh compile
			fmt.Fprintf(os.Stderr, "Warning: discarding cached image: %v\n", err)
		}
	}

	code, err := compiler.Compile(strings.NewReader(string(src)))
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}

	if store != nil {
		image, err := vm.MarshalImage(code)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else if err := store.Put(key, image); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	return code, nil
}
