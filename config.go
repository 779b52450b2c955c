package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/zyedidia/relget/home"
	"github.com/zyedidia/relget/release"
)

type ConfigGlobal struct {
	GithubToken string `toml:"github_token"`
	APIURL      string `toml:"api_url"`
	Quiet       bool   `toml:"quiet"`
	ShowHash    bool   `toml:"show_hash"`
}

type ConfigRepository struct {
	Tag       string `toml:"tag"`
	AssetName string `toml:"asset_name"`
	Target    string `toml:"to"`
	Quiet     bool   `toml:"quiet"`
	ShowHash  bool   `toml:"show_hash"`
}

type Config struct {
	Meta         *toml.MetaData
	Global       ConfigGlobal `toml:"global"`
	Repositories map[string]ConfigRepository
}

//go:embed config.schema.json
var configSchemaJSON string

const configSchemaURL = "https://github.com/zyedidia/relget/config.schema.json"

func compileConfigSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(configSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(configSchemaURL)
}

// LoadConfigurationFile reads and validates the TOML file at path.
func LoadConfigurationFile(path string) (Config, error) {
	var conf Config

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}

	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return conf, err
	}
	schema, err := compileConfigSchema()
	if err != nil {
		return conf, fmt.Errorf("config schema: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return conf, err
	}

	meta, err := toml.Decode(string(data), &conf)
	if err != nil {
		return conf, err
	}
	if _, err := toml.Decode(string(data), &conf.Repositories); err != nil {
		return conf, err
	}
	delete(conf.Repositories, "global")
	conf.Meta = &meta

	return conf, nil
}

func configPaths() []string {
	if p, ok := os.LookupEnv("RELGET_CONFIG"); ok {
		return []string{p}
	}

	var paths []string
	if h, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(h, ".relget.toml"))
	}
	paths = append(paths, "relget.toml")
	if dir, err := home.ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "relget", "relget.toml"))
	}
	return paths
}

// InitializeConfig loads the first config file found. $RELGET_CONFIG, if
// set, is the only candidate. No file at all is not an error.
func InitializeConfig() (*Config, error) {
	for _, p := range configPaths() {
		conf, err := LoadConfigurationFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		// repository sections inherit unset switches from [global]
		for name, repo := range conf.Repositories {
			if !conf.Meta.IsDefined(name, "quiet") {
				repo.Quiet = conf.Global.Quiet
			}
			if !conf.Meta.IsDefined(name, "show_hash") {
				repo.ShowHash = conf.Global.ShowHash
			}
			conf.Repositories[name] = repo
		}
		return &conf, nil
	}

	return &Config{
		Repositories: make(map[string]ConfigRepository),
	}, nil
}

func update[T any](config T, cli *T) T {
	if cli == nil {
		return config
	}
	return *cli
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// SetOptionsFromConfig fills opts from the config file, the environment and
// the command line, in increasing order of precedence.
func SetOptionsFromConfig(config *Config, opts *Flags, cli CliFlags, projectName string) error {
	token := firstNonEmpty(os.Getenv("RELGET_GITHUB_TOKEN"), os.Getenv("GITHUB_TOKEN"), config.Global.GithubToken)
	apiURL := firstNonEmpty(os.Getenv("RELGET_API_URL"), config.Global.APIURL, release.DefaultAPIURL)

	opts.Token = update(token, cli.Token)
	opts.APIURL = update(apiURL, cli.APIURL)
	opts.Tag = update("", cli.Tag)
	opts.Asset = update("", cli.Asset)
	opts.Output = update("", cli.Output)
	opts.Quiet = update(config.Global.Quiet, cli.Quiet)
	opts.Hash = update(config.Global.ShowHash, cli.Hash)
	opts.Check = update(false, cli.Check)
	opts.JSON = cli.JSON

	if repo, ok := config.Repositories[projectName]; ok {
		opts.Tag = update(repo.Tag, cli.Tag)
		opts.Asset = update(repo.AssetName, cli.Asset)
		opts.Output = update(repo.Target, cli.Output)
		opts.Quiet = update(repo.Quiet, cli.Quiet)
		opts.Hash = update(repo.ShowHash, cli.Hash)
	}

	out, err := home.Expand(opts.Output)
	if err != nil {
		return err
	}
	opts.Output = out
	return nil
}
