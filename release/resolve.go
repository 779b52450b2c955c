// Package release resolves GitHub releases and downloads a single asset or
// the generated source tarball of a release.
//
// Resolution is a short chain where each step produces the handle the next
// one needs: Authenticate returns a Session, Session.FindRepository a
// Repository, Repository.ResolveRelease a Release, and Release.ResolveTarget
// the Target that a Fetcher downloads. Handles can only be obtained through
// these calls.
package release

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// A Selector picks a release: Latest or an exact tag name.
type Selector string

// Latest selects the most recent published release.
const Latest Selector = "latest"

func (s Selector) IsLatest() bool {
	return s == Latest
}

// A RepositoryRef names a repository as given by the caller.
type RepositoryRef struct {
	Owner string
	Name  string
}

// ParseRepositoryRef parses a reference of the form `owner/name`.
func ParseRepositoryRef(s string) (RepositoryRef, error) {
	if strings.Count(s, "/") != 1 {
		return RepositoryRef{}, fmt.Errorf("invalid repository %q (must be of the form `owner/repo`)", s)
	}
	owner, name, _ := strings.Cut(s, "/")
	ref := RepositoryRef{Owner: owner, Name: name}
	if err := ref.Validate(); err != nil {
		return RepositoryRef{}, err
	}
	return ref, nil
}

func (r RepositoryRef) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return fmt.Errorf("invalid repository %q (owner and name must be non-empty)", r.String())
	}
	return nil
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// A Session is a client whose credentials the API has accepted.
type Session struct {
	client *Client
	login  string
}

// Login is the account name the API reported for the session's token.
func (s *Session) Login() string {
	return s.login
}

type githubUser struct {
	Login string `json:"login"`
}

// Authenticate confirms that the client's token is valid by requesting the
// authenticated user. A missing or rejected token is an *AuthError.
func Authenticate(c *Client) (*Session, error) {
	if c.Token == "" {
		return nil, &AuthError{Err: errors.New("no token provided")}
	}

	var u githubUser
	if err := c.getJSON("/user", &u); err != nil {
		if isStatus(err, http.StatusUnauthorized) {
			return nil, &AuthError{Err: err}
		}
		return nil, &TransportError{Op: "authenticate", Err: err}
	}
	return &Session{client: c, login: u.Login}, nil
}

// A Repository is a repository the session can access.
type Repository struct {
	session  *Session
	owner    string
	name     string
	fullName string
}

func (r *Repository) Owner() string    { return r.owner }
func (r *Repository) Name() string     { return r.name }
func (r *Repository) FullName() string { return r.fullName }

type githubRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (r *Repository) path() string {
	return "/repos/" + url.PathEscape(r.owner) + "/" + url.PathEscape(r.name)
}

// FindRepository looks up ref. A repository the API does not report (absent
// or not visible to the token) is a *RepositoryNotFoundError.
func (s *Session) FindRepository(ref RepositoryRef) (*Repository, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	repo := &Repository{
		session: s,
		owner:   ref.Owner,
		name:    ref.Name,
	}

	var gr githubRepository
	if err := s.client.getJSON(repo.path(), &gr); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, &RepositoryNotFoundError{Owner: ref.Owner, Name: ref.Name}
		}
		return nil, &TransportError{Op: "find repository " + ref.String(), Err: err}
	}

	repo.fullName = gr.FullName
	if repo.fullName == "" {
		repo.fullName = ref.String()
	}
	return repo, nil
}

// A Release is one release of a Repository.
type Release struct {
	repo       *Repository
	id         int64
	tag        string
	tarballURL string
	assets     []Asset
}

func (r *Release) ID() int64   { return r.id }
func (r *Release) Tag() string { return r.tag }

// TarballURL is the API URL of the generated source archive.
func (r *Release) TarballURL() string { return r.tarballURL }

// Assets returns the release's assets in the order the API listed them.
func (r *Release) Assets() []Asset {
	return append([]Asset(nil), r.assets...)
}

// An Asset is a file uploaded to a Release.
type Asset struct {
	id   int64
	name string
	url  string
	size int64
}

func (a Asset) ID() int64    { return a.id }
func (a Asset) Name() string { return a.name }
func (a Asset) Size() int64  { return a.size }

// URL is the API URL that serves the asset's content.
func (a Asset) URL() string { return a.url }

type githubAsset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

type githubRelease struct {
	ID         int64         `json:"id"`
	Tag        string        `json:"tag_name"`
	TarballURL string        `json:"tarball_url"`
	Assets     []githubAsset `json:"assets"`
}

// ResolveRelease finds the release chosen by sel. Latest asks the API for
// the most recent published release; anything else must equal a tag exactly.
func (r *Repository) ResolveRelease(sel Selector) (*Release, error) {
	var path string
	if sel.IsLatest() {
		path = r.path() + "/releases/latest"
	} else {
		path = r.path() + "/releases/tags/" + url.PathEscape(string(sel))
	}

	var gr githubRelease
	if err := r.session.client.getJSON(path, &gr); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, &ReleaseNotFoundError{Owner: r.owner, Name: r.name, Selector: sel}
		}
		return nil, &TransportError{Op: fmt.Sprintf("resolve release %s of %s/%s", sel, r.owner, r.name), Err: err}
	}

	rel := &Release{
		repo:       r,
		id:         gr.ID,
		tag:        gr.Tag,
		tarballURL: gr.TarballURL,
		assets:     make([]Asset, 0, len(gr.Assets)),
	}
	if rel.tarballURL == "" {
		rel.tarballURL = r.session.client.BaseURL + r.path() + "/tarball/" + url.PathEscape(gr.Tag)
	}
	for _, a := range gr.Assets {
		u := a.URL
		if u == "" {
			u = a.BrowserDownloadURL
		}
		rel.assets = append(rel.assets, Asset{
			id:   a.ID,
			name: a.Name,
			url:  u,
			size: a.Size,
		})
	}
	return rel, nil
}

// A Target is what a Fetcher downloads: a NamedAsset or a DefaultArchive.
type Target interface {
	fmt.Stringer
	target()
}

// NamedAsset downloads one asset of a release.
type NamedAsset struct {
	Asset Asset
}

// DefaultArchive downloads the generated source tarball of a release.
type DefaultArchive struct {
	Release *Release
}

func (NamedAsset) target()     {}
func (DefaultArchive) target() {}

func (t NamedAsset) String() string {
	return fmt.Sprintf("asset `%s`", t.Asset.name)
}

func (t DefaultArchive) String() string {
	return fmt.Sprintf("source tarball of %s", t.Release.tag)
}

// ResolveTarget decides what to download. An empty assetName selects the
// source tarball without looking at the assets. Otherwise the first asset
// whose name equals assetName is chosen; if there is none the result is an
// *AssetNotFoundError, never the tarball.
func (r *Release) ResolveTarget(assetName string) (Target, error) {
	if assetName == "" {
		return DefaultArchive{Release: r}, nil
	}
	for _, a := range r.assets {
		if a.name == assetName {
			return NamedAsset{Asset: a}, nil
		}
	}
	return nil, &AssetNotFoundError{Name: assetName, Tag: r.tag}
}
