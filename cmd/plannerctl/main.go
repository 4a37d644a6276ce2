// Command plannerctl is a host-side console that feeds a G-code file
// or stdin through the look-ahead planner and drains the resulting
// block queue with a virtual stepper clock, printing (with -verbose)
// the queue depth after each accepted line and, at the end, a count of
// accepted and rejected lines. It is the host-tooling counterpart of the teacher's
// host/cmd/gopper-host: same flag-driven single-binary shape, aimed at
// the planner instead of the Klipper wire protocol.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"machinecore/config"
	"machinecore/gcode"
	"machinecore/host/serial"
	"machinecore/planner"
)

var (
	configPath = flag.String("config", "", "machine config JSON path (default: built-in Cartesian profile)")
	gcodePath  = flag.String("gcode", "", "G-code file to feed (default: stdin)")
	device     = flag.String("device", "", "optional serial device to mirror accepted lines to")
	feedrate   = flag.Float64("feedrate", 1500, "default feedrate in mm/min for moves with no F word")
	verbose    = flag.Bool("verbose", false, "print the queue depth after every accepted line")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plannerctl: %v\n", err)
		os.Exit(1)
	}

	kin, err := planner.NewKinematicsModel(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plannerctl: %v\n", err)
		os.Exit(1)
	}

	p := planner.New(cfg, kin)
	interp := gcode.NewInterpreter(p, *feedrate/60.0)
	parser := gcode.NewParser()

	var mirror serial.Port
	if *device != "" {
		mirror, err = serial.Open(serial.DefaultConfig(*device))
		if err != nil {
			fmt.Fprintf(os.Stderr, "plannerctl: opening %s: %v\n", *device, err)
			os.Exit(1)
		}
		defer mirror.Close()
	}

	in, err := openInput(*gcodePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plannerctl: %v\n", err)
		os.Exit(1)
	}
	if in != os.Stdin {
		defer in.Close()
	}

	done := make(chan struct{})
	go drain(p, done)

	scanner := bufio.NewScanner(in)
	lineNum := 0
	accepted, rejected := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		cmd, perr := parser.ParseLine(line)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "line %d: parse error: %v\n", lineNum, perr)
			continue
		}
		if cmd == nil || cmd.Comment != "" && cmd.Type == 0 {
			continue
		}

		if err := interp.Execute(cmd); err != nil {
			rejected++
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNum, err)
			continue
		}
		accepted++

		if *verbose {
			fmt.Printf("line %d: queued (%d in flight)\n", lineNum, p.QueueLen())
		}
		if mirror != nil {
			fmt.Fprintf(mirror, "%s\n", line)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "plannerctl: reading input: %v\n", err)
	}

	p.Synchronize()
	close(done)

	fmt.Printf("done: %d lines accepted, %d rejected\n", accepted, rejected)
}

func loadConfig(path string) (*config.MachineConfig, error) {
	if path == "" {
		return config.DefaultCartesianConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return config.Load(data)
}

func openInput(path string) (*os.File, error) {
	if path == "" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gcode file: %w", err)
	}
	return f, nil
}

// drain is the virtual stepper: with no real hardware attached it
// retires each block after sleeping the time its fitted nominal rate
// implies, so a plannerctl run against a file can be timed and traced
// without any GPIO wiring.
func drain(p *planner.Planner, done <-chan struct{}) {
	for {
		select {
		case <-done:
			if p.QueueLen() == 0 {
				return
			}
		default:
		}

		blk := p.PeekBlock()
		if blk == nil {
			select {
			case <-done:
				return
			default:
				time.Sleep(time.Millisecond)
				continue
			}
		}

		if !blk.IsSync() && blk.NominalRate > 0 {
			segSeconds := float64(blk.StepEventCount) / float64(blk.NominalRate)
			time.Sleep(time.Duration(segSeconds * float64(time.Second)))
		}

		p.SetBlockBusy(false)
		p.RetireBlock()
	}
}
