package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pborman/getopt"

	"github.com/dougsko/ddstune/pkg/client"
	"github.com/dougsko/ddstune/pkg/protocol"
	"github.com/dougsko/ddstune/pkg/storage"
)

var (
	socketPath string
	rawJSON    bool
)

func parseArgs() []string {
	h := getopt.BoolLong("help", 'h', "display help")
	s := getopt.StringLong("socket", 's', "/tmp/ddstune.sock", "Unix socket path")
	j := getopt.BoolLong("json", 'j', "print raw JSON responses")
	n := getopt.BoolLong("no-color", 'n', "disable colored output")

	getopt.SetParameters("<command> [args]")
	getopt.Parse()

	if *h || getopt.NArgs() == 0 || *s == "" {
		showHelp()
		os.Exit(1)
	}

	socketPath = *s
	rawJSON = *j
	if *n || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return getopt.Args()
}

func main() {
	args := parseArgs()
	c := client.NewSocketClient(socketPath)

	if err := run(c, args); err != nil {
		color.New(color.FgHiRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *client.SocketClient, args []string) error {
	if rawJSON {
		resp, err := c.SendCommand(commandLine(args))
		if err != nil {
			return err
		}
		fmt.Println(resp.String())
		if !resp.Success {
			os.Exit(1)
		}
		return nil
	}

	var (
		status *protocol.Status
		err    error
	)

	switch strings.ToLower(args[0]) {
	case "status":
		status, err = c.GetStatus()

	case "freq", "frequency":
		if len(args) < 2 {
			return fmt.Errorf("usage: freq <hz|MHz>")
		}
		var hz int64
		if hz, err = parseFrequency(args[1]); err != nil {
			return err
		}
		status, err = c.SetFrequency(hz)

	case "vfo":
		if len(args) < 2 {
			return fmt.Errorf("usage: vfo <A|B>")
		}
		status, err = c.SelectVFO(args[1])

	case "sideband", "sb":
		if len(args) < 2 {
			return fmt.Errorf("usage: sideband <lsb|usb|toggle>")
		}
		status, err = c.SetSideband(args[1])

	case "step":
		if len(args) < 2 {
			return fmt.Errorf("usage: step <0-6>")
		}
		var step int
		if step, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid step %q", args[1])
		}
		status, err = c.SetStep(step)

	case "turn":
		if len(args) < 2 {
			return fmt.Errorf("usage: turn <detents>")
		}
		var steps int
		if steps, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid detent count %q", args[1])
		}
		status, err = c.Turn(steps)

	case "save":
		if status, err = c.Save(); err == nil {
			color.New(color.FgHiGreen).Println("Settings saved")
		}

	case "history":
		limit := 20
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
		}
		var entries []storage.Entry
		if entries, err = c.GetHistory(limit); err != nil {
			return err
		}
		printHistory(entries)
		return nil

	case "ping":
		if err = c.Ping(); err == nil {
			color.New(color.FgHiGreen).Println("pong")
		}
		return err

	default:
		resp, err := c.SendCommand(commandLine(args))
		if err != nil {
			return err
		}
		fmt.Println(resp.String())
		return nil
	}

	if err != nil {
		return err
	}
	printStatus(status)
	return nil
}

// commandLine joins args into one protocol line, quoting where needed
func commandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t'\"") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// parseFrequency accepts plain hertz ("7074000") or megahertz with a
// decimal point ("7.074")
func parseFrequency(s string) (int64, error) {
	if strings.Contains(s, ".") {
		mhz, err := strconv.ParseFloat(s, 64)
		if err != nil || mhz <= 0 {
			return 0, fmt.Errorf("invalid frequency %q", s)
		}
		return int64(mhz*1e6 + 0.5), nil
	}
	hz, err := strconv.ParseInt(s, 10, 64)
	if err != nil || hz <= 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return hz, nil
}

// formatFrequency renders hertz as MHz.kHz.Hz
func formatFrequency(hz int64) string {
	return fmt.Sprintf("%d.%03d.%03d", hz/1000000, hz/1000%1000, hz%1000)
}

func printStatus(s *protocol.Status) {
	label := color.New(color.FgHiWhite)
	value := color.New(color.FgHiCyan)

	for _, v := range s.VFOs {
		marker := "  "
		c := color.New(color.FgWhite)
		if v.Name == s.ActiveVFO {
			marker = "> "
			c = value
		}
		fmt.Print(marker)
		label.Printf("VFO %s  ", v.Name)
		c.Printf("%14s Hz  %s  step %s\n", formatFrequency(v.Frequency), v.Sideband, v.StepLabel)
	}

	label.Print("  Band   ")
	bandColor := color.New(color.FgHiYellow)
	if s.Band == "high" {
		bandColor = color.New(color.FgHiMagenta)
	}
	bandColor.Printf("%s", s.Band)
	label.Print("  Mode ")
	value.Printf("%s", s.Mode)
	label.Print("  Meter ")
	value.Printf("%d\n", s.Meter)

	label.Print("  Word   ")
	value.Printf("%s", s.TuningWord)
	label.Print("  Backend ")
	value.Printf("%s", s.Backend)
	label.Print("  Up ")
	value.Printf("%s\n", s.Uptime)
}

func printHistory(entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Println("No journal entries")
		return
	}

	kindColors := map[string]*color.Color{
		"tune":     color.New(color.FgHiCyan),
		"vfo":      color.New(color.FgHiYellow),
		"sideband": color.New(color.FgHiMagenta),
		"step":     color.New(color.FgHiBlue),
		"save":     color.New(color.FgHiGreen),
	}

	for _, e := range entries {
		c, ok := kindColors[e.Kind]
		if !ok {
			c = color.New(color.FgWhite)
		}
		fmt.Printf("%s  ", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		c.Printf("%-8s", e.Kind)
		fmt.Printf(" %-8s VFO %s %14s Hz %s step %d %s\n",
			e.Source, e.VFO, formatFrequency(e.Frequency), e.Sideband, e.Step, e.Band)
	}
}

func showHelp() {
	getopt.PrintUsage(os.Stderr)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  status                     Show both VFOs and the tuner state")
	fmt.Fprintln(os.Stderr, "  freq <hz|MHz>              Tune the active VFO (7074000 or 7.074)")
	fmt.Fprintln(os.Stderr, "  vfo <A|B>                  Select the active VFO")
	fmt.Fprintln(os.Stderr, "  sideband <lsb|usb|toggle>  Set the sideband of the active VFO")
	fmt.Fprintln(os.Stderr, "  step <0-6>                 Select the tuning step")
	fmt.Fprintln(os.Stderr, "  save                       Store settings in the EEPROM")
	fmt.Fprintln(os.Stderr, "  history [n]                Show the last n tuning changes")
	fmt.Fprintln(os.Stderr, "  turn <detents>             Simulate encoder detents (mock backend),")
	fmt.Fprintln(os.Stderr, "                             negative counts after --, e.g. turn -- -3")
	fmt.Fprintln(os.Stderr, "  ping                       Test the connection")
	fmt.Fprintln(os.Stderr, "  <anything else>            Sent verbatim, raw JSON printed")
}
