// Package version хранит сведения о сборке, подставляемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/pos/internal/version.version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает сборку; отдаётся в /api/v1/version и `posctl version`.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
}

// Get возвращает сведения о текущей сборке.
func Get() Build {
	return Build{Version: version, Commit: commit, Date: date, GoVersion: runtime.Version()}
}

// UserAgent используется HTTP-клиентом удалённого каталога.
func UserAgent() string {
	return "pos/" + version
}

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s go=%s", b.Version, b.Commit, b.Date, b.GoVersion)
}
