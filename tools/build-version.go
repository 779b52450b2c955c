// Prints the version relget is being built as, for use with
// -ldflags "-X main.Version=...". A build of an exact vX.Y.Z tag gets that
// version; anything else gets the next patch version with a pre-release
// suffix naming the current tag (or "dev") and the number of commits since
// the last release tag.
package main

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/blang/semver"
)

func git(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}

// describe runs git describe and splits its output into the tag and the
// number of commits the current revision is ahead of it.
func describe(extra ...string) (tag string, ahead *semver.PRVersion) {
	out, err := git(append([]string{"describe", "--tags"}, extra...)...)
	if err != nil {
		return "", nil
	}

	// <tag>-<ahead>-g<sha>, where <tag> may itself contain one dash
	parts := strings.Split(out, "-")
	if n := len(parts); n >= 3 && strings.HasPrefix(parts[n-1], "g") {
		if pr, err := semver.NewPRVersion(parts[n-2]); err == nil && pr.IsNumeric() {
			return strings.Join(parts[:n-2], "-"), &pr
		}
	}
	return out, nil
}

func buildVersion() string {
	if tags, err := git("tag"); err != nil || tags == "" {
		exec.Command("git", "fetch", "--tags").Run()
	}

	last, ahead := describe("--match", "v*")
	v, err := semver.ParseTolerant(last)
	if err != nil {
		return "0.0.0-unknown"
	}

	exact, _ := describe("--exact-match")
	if exact == last {
		return v.String()
	}

	if len(v.Pre) == 0 {
		v.Patch++
	}

	label := "dev"
	if exact != "" && !strings.HasPrefix(exact, "nightly") {
		label = exact
	}
	if pr, err := semver.NewPRVersion(label); err == nil {
		v.Pre = append(v.Pre, pr)
	}
	if ahead != nil {
		v.Pre = append(v.Pre, *ahead)
	}
	return v.String()
}

func main() {
	fmt.Println(buildVersion())
}
