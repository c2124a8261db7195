package mirror

import (
	"context"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

// fakeProber reports the URLs in ok as resolvable and records every call.
type fakeProber struct {
	ok    map[string]bool
	calls []string
}

func (f *fakeProber) Resolvable(_ context.Context, rawURL string) bool {
	f.calls = append(f.calls, rawURL)
	return f.ok[rawURL]
}

func TestResolve(t *testing.T) {
	t.Parallel()

	const (
		pmir = "http://us.archive.ubuntu.com/ubuntu/"
		smir = "http://security.ubuntu.com/ubuntu/"
	)

	tests := []struct {
		name     string
		arch     string
		primary  []Spec
		security []Spec
		want     Result
	}{
		{
			name:     "explicit uris",
			arch:     "amd64",
			primary:  []Spec{{Arches: []string{"default"}, URI: pmir}},
			security: []Spec{{Arches: []string{"default"}, URI: smir}},
			want:     Result{Mirror: pmir, Primary: pmir, Security: smir},
		},
		{
			name: "no config on intel",
			arch: "amd64",
			want: Result{
				Mirror:   "http://archive.ubuntu.com/ubuntu/",
				Primary:  "http://archive.ubuntu.com/ubuntu/",
				Security: "http://security.ubuntu.com/ubuntu/",
			},
		},
		{
			name: "no config on ports",
			arch: "ppc64el",
			want: Result{
				Mirror:   "http://ports.ubuntu.com/ubuntu-ports",
				Primary:  "http://ports.ubuntu.com/ubuntu-ports",
				Security: "http://ports.ubuntu.com/ubuntu-ports",
			},
		},
		{
			name: "arch match after default",
			arch: "ppc64el",
			primary: []Spec{
				{Arches: []string{"default"}, URI: "notthis-primary"},
				{Arches: []string{"ppc64el"}, URI: "http://my-primary.ubuntu.com/ubuntu/"},
			},
			security: []Spec{
				{Arches: []string{"default"}, URI: "nothis-security"},
				{Arches: []string{"ppc64el"}, URI: "http://my-security.ubuntu.com/ubuntu/"},
			},
			want: Result{
				Mirror:   "http://my-primary.ubuntu.com/ubuntu/",
				Primary:  "http://my-primary.ubuntu.com/ubuntu/",
				Security: "http://my-security.ubuntu.com/ubuntu/",
			},
		},
		{
			name: "default when arch is not listed",
			arch: "amd64",
			primary: []Spec{
				{Arches: []string{"default"}, URI: pmir},
				{Arches: []string{"thisarchdoesntexist"}, URI: "notthis"},
			},
			security: []Spec{
				{Arches: []string{"thisarchdoesntexist"}, URI: "nothat"},
				{Arches: []string{"default"}, URI: smir},
			},
			want: Result{Mirror: pmir, Primary: pmir, Security: smir},
		},
		{
			name: "built-in defaults when nothing matches",
			arch: "s390x",
			primary: []Spec{
				{Arches: []string{"thisarchdoesntexist_64"}, URI: "notthis"},
				{Arches: []string{"thisarchdoesntexist"}, URI: "notthiseither"},
			},
			security: []Spec{
				{Arches: []string{"thisarchdoesntexist"}, URI: "nothat"},
			},
			want: Result{
				Mirror:   "http://ports.ubuntu.com/ubuntu-ports",
				Primary:  "http://ports.ubuntu.com/ubuntu-ports",
				Security: "http://ports.ubuntu.com/ubuntu-ports",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{}
			r := NewResolver(prober)
			got, err := r.Resolve(context.Background(), tt.primary, tt.security, tt.arch)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
			if len(prober.calls) != 0 {
				t.Errorf("prober called for uri specs: %v", prober.calls)
			}
		})
	}
}

func TestResolveSearch(t *testing.T) {
	t.Parallel()

	const (
		pmir = "http://us.archive.ubuntu.com/ubuntu/"
		smir = "http://security.ubuntu.com/ubuntu/"
	)
	prober := &fakeProber{ok: map[string]bool{pmir: true, smir: true}}
	r := NewResolver(prober)

	got, err := r.Resolve(context.Background(),
		[]Spec{{Arches: []string{"default"}, Search: []string{"http://pfailme/", pmir, "http://never/"}}},
		[]Spec{{Arches: []string{"default"}, Search: []string{"http://sfailme/", smir}}},
		"amd64")
	if err != nil {
		t.Fatal(err)
	}
	want := Result{Mirror: pmir, Primary: pmir, Security: smir}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}

	calls := []string{"http://pfailme/", pmir, "http://sfailme/", smir}
	if !reflect.DeepEqual(prober.calls, calls) {
		t.Errorf("probed %v, want %v", prober.calls, calls)
	}
}

func TestResolveURIBeatsSearch(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	r := NewResolver(prober)
	spec := []Spec{{Arches: []string{"default"}, URI: "http://m/", Search: []string{"http://a/", "http://b/"}}}

	got, err := r.Resolve(context.Background(), spec, spec, "amd64")
	if err != nil {
		t.Fatal(err)
	}
	if got.Primary != "http://m/" || got.Security != "http://m/" {
		t.Errorf("Resolve() = %+v", got)
	}
	if len(prober.calls) != 0 {
		t.Errorf("prober called: %v", prober.calls)
	}
}

func TestResolveSearchExhausted(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeProber{})
	_, err := r.Resolve(context.Background(),
		[]Spec{{Arches: []string{"default"}, Search: []string{"http://a/", "http://b/"}}},
		nil, "amd64")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrUnresolvable) {
		t.Errorf("error %v is not ErrUnresolvable", err)
	}
}

func TestResultParams(t *testing.T) {
	t.Parallel()

	r := Result{Mirror: "http://m/", Primary: "http://m/", Security: "http://s/"}
	p := r.Params("karmic")
	if p["MIRROR"] != "http://m/" || p["SECURITY"] != "http://s/" || p["RELEASE"] != "karmic" {
		t.Errorf("Params() = %v", p)
	}
}

func TestSpecCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"uri", Spec{Arches: []string{"default"}, URI: "http://m/ubuntu"}, false},
		{"search", Spec{Arches: []string{"amd64"}, Search: []string{"http://a/", "https://b/"}}, false},
		{"no arches", Spec{URI: "http://m/"}, true},
		{"no uri nor search", Spec{Arches: []string{"default"}}, true},
		{"uri without scheme", Spec{Arches: []string{"default"}, URI: "mirror.example.com/ubuntu"}, true},
		{"bad search entry", Spec{Arches: []string{"default"}, Search: []string{"http://a/", "nope"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.spec.Check(); (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
