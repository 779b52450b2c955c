package main

// Flags are the effective options after merging the config file and the
// command line.
type Flags struct {
	Tag    string
	Asset  string
	Output string
	Token  string
	APIURL string
	Check  bool
	Quiet  bool
	Hash   bool
	JSON   bool
}

// CliFlags are the command-line options. Pointer fields are nil when the
// option was not given, so config values are only overridden explicitly.
type CliFlags struct {
	Tag     *string `short:"t" long:"tag" description:"release to download: a tag name, or 'latest' for the most recent release"`
	Asset   *string `short:"a" long:"asset" description:"exact name of the release asset to download (default: the source tarball)"`
	Output  *string `short:"o" long:"to" description:"path to write the download to"`
	Token   *string `long:"token" description:"GitHub token (default: $RELGET_GITHUB_TOKEN or $GITHUB_TOKEN)"`
	APIURL  *string `long:"api-url" description:"GitHub API base URL (default: $RELGET_API_URL or https://api.github.com)"`
	Check   *bool   `long:"check" description:"validate arguments and configuration only (no network access, no files written)"`
	Quiet   *bool   `short:"q" long:"quiet" description:"only print essential output"`
	Hash    *bool   `long:"sha256" description:"show the SHA-256 hash of the downloaded file"`
	JSON    bool    `long:"json" description:"print the result as a JSON object"`
	Rate    bool    `long:"rate" description:"show GitHub API rate limiting information"`
	Version bool    `short:"v" long:"version" description:"show version information"`
	Help    bool    `short:"h" long:"help" description:"show this help message"`
}
