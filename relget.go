package main

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	pb "github.com/schollz/progressbar/v3"
	"github.com/zyedidia/relget/release"
)

// Version is set at build time from tools/build-version.go.
var Version = "dev"

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// A usageError is a problem with the invocation itself.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

// result is the outcome of a run as printed by --json.
type result struct {
	Changed bool   `json:"changed"`
	Failed  bool   `json:"failed,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Check   bool   `json:"check_mode,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Release string `json:"release,omitempty"`
	Asset   string `json:"asset,omitempty"`
	Dest    string `json:"dest,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	var cli CliFlags
	flagparser := flags.NewParser(&cli, flags.PassDoubleDash)
	flagparser.Usage = "[OPTIONS] OWNER/REPO"
	rest, err := flagparser.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if cli.Version {
		fmt.Fprintln(stdout, "relget version", Version)
		return exitOK
	}

	if cli.Help {
		flagparser.WriteHelp(stdout)
		return exitOK
	}

	conf, err := InitializeConfig()
	if err != nil {
		return report(stdout, stderr, cli.JSON, result{}, fmt.Errorf("config: %w", err))
	}

	if cli.Rate {
		var opts Flags
		if err := SetOptionsFromConfig(conf, &opts, cli, ""); err != nil {
			return report(stdout, stderr, cli.JSON, result{}, err)
		}
		rl, err := release.NewClient(opts.APIURL, opts.Token).RateLimit()
		if err != nil {
			return report(stdout, stderr, cli.JSON, result{}, err)
		}
		if cli.JSON {
			if err := writeJSON(stdout, rl); err != nil {
				fmt.Fprintln(stderr, "error:", err)
				return exitFail
			}
			return exitOK
		}
		fmt.Fprintln(stdout, rl)
		return exitOK
	}

	if len(rest) != 1 {
		fmt.Fprintln(stderr, "expected exactly one target (OWNER/REPO)")
		flagparser.WriteHelp(stderr)
		return exitUsage
	}

	var opts Flags
	if err := SetOptionsFromConfig(conf, &opts, cli, rest[0]); err != nil {
		return report(stdout, stderr, cli.JSON, result{}, err)
	}

	res, err := get(rest[0], &opts, stdout, stderr)
	return report(stdout, stderr, opts.JSON, res, err)
}

// report prints the outcome of a run and returns the exit status.
func report(stdout, stderr io.Writer, asJSON bool, res result, err error) int {
	code := exitOK
	if err != nil {
		res.Changed = false
		res.Failed = true
		res.Msg = err.Error()
		code = exitFail
		var ue *usageError
		if errors.As(err, &ue) {
			code = exitUsage
		}
	}

	if asJSON {
		if werr := writeJSON(stdout, res); werr != nil {
			fmt.Fprintln(stderr, "error:", werr)
			return exitFail
		}
	} else if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return code
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validate(opts *Flags) error {
	if opts.Tag == "" {
		return usagef("no release given (use --tag TAG or --tag latest)")
	}
	if opts.Output == "" {
		return usagef("no destination given (use --to PATH)")
	}
	if opts.Token == "" {
		return usagef("no GitHub token given (use --token, $RELGET_GITHUB_TOKEN or $GITHUB_TOKEN)")
	}
	return nil
}

func newProgressBar(quiet bool, stderr io.Writer) func(size int64) *pb.ProgressBar {
	return func(size int64) *pb.ProgressBar {
		var pbout io.Writer = stderr
		if quiet {
			pbout = io.Discard
		}
		return pb.NewOptions64(size,
			pb.OptionSetWriter(pbout),
			pb.OptionShowBytes(true),
			pb.OptionSetWidth(10),
			pb.OptionThrottle(65*time.Millisecond),
			pb.OptionShowCount(),
			pb.OptionSpinnerType(14),
			pb.OptionFullWidth(),
			pb.OptionSetDescription("Downloading"),
			pb.OptionOnCompletion(func() {
				fmt.Fprint(pbout, "\n")
			}),
			pb.OptionSetTheme(pb.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}
}

// get resolves what to download for project and downloads it. Each step
// stops the run on failure.
func get(project string, opts *Flags, stdout, stderr io.Writer) (result, error) {
	res := result{Dest: opts.Output, Asset: opts.Asset}

	ref, err := release.ParseRepositoryRef(project)
	if err != nil {
		return res, usagef("%v", err)
	}
	res.Repo = ref.String()
	if err := validate(opts); err != nil {
		return res, err
	}

	if err := release.Probe(opts.APIURL); err != nil {
		return res, err
	}

	// non-essential output; --json keeps stdout for the result object
	var output io.Writer = stdout
	if opts.Quiet || opts.JSON {
		output = io.Discard
	}

	what := "source tarball"
	if opts.Asset != "" {
		what = fmt.Sprintf("asset `%s`", opts.Asset)
	}

	if opts.Check {
		res.Check = true
		res.Release = opts.Tag
		fmt.Fprintf(output, "check mode: would download %s of %s@%s to `%s`\n", what, ref, opts.Tag, opts.Output)
		return res, nil
	}

	client := release.NewClient(opts.APIURL, opts.Token)
	client.UserAgent = "relget/" + Version

	session, err := release.Authenticate(client)
	if err != nil {
		return res, err
	}
	repo, err := session.FindRepository(ref)
	if err != nil {
		return res, err
	}
	rel, err := repo.ResolveRelease(release.Selector(opts.Tag))
	if err != nil {
		return res, err
	}
	res.Release = rel.Tag()
	target, err := rel.ResolveTarget(opts.Asset)
	if err != nil {
		return res, err
	}

	fmt.Fprintf(output, "Downloading %s from %s@%s\n", target, ref, rel.Tag())

	fetcher := release.NewFetcher(session)
	fetcher.Bar = newProgressBar(opts.Quiet || opts.JSON, stderr)
	var sum hash.Hash
	if opts.Hash {
		sum = sha256.New()
		fetcher.Tee = sum
	}

	if err := fetcher.Fetch(target, opts.Output); err != nil {
		return res, err
	}
	res.Changed = true

	if sum != nil {
		res.SHA256 = fmt.Sprintf("%x", sum.Sum(nil))
		if !opts.JSON {
			fmt.Fprintln(stdout, res.SHA256)
		}
	}
	fmt.Fprintf(output, "Wrote %s to `%s`\n", target, opts.Output)
	return res, nil
}
