package version

import (
	"errors"
	"fmt"
	"runtime"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// ErrServerTooOld is returned by CheckServer for servers below the minimum.
var ErrServerTooOld = errors.New("server version is below the supported minimum")

// Info holds version information
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
}

// Get returns version information
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("libsql version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`libsql version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion)
}

// CheckServer compares a server version against minimum, a version or a
// constraint such as ">= 0.24, < 1.0". A bare version means ">= version".
func CheckServer(server *goversion.Version, minimum string) error {
	if minimum == "" {
		return nil
	}
	if _, err := goversion.NewVersion(minimum); err == nil {
		minimum = ">= " + minimum
	}
	constraints, err := goversion.NewConstraint(minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum server version %q: %w", minimum, err)
	}
	if !constraints.Check(server) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrServerTooOld, server, constraints)
	}
	return nil
}
