package domain

import (
	"strings"

	"github.com/365businessdev/alget/internal/log"
)

// ResolveLocalState recomputes IsInstalled and Version from the local cache
// directory, falling back to the manifests of other open projects.
func (p *Package) ResolveLocalState(local LocalIndex, workspace []WorkspaceProject) {
	p.IsInstalled = false
	p.Version = "0.0.0.0"
	if p.MinimumVersion != "" {
		p.Version = PadVersion(p.MinimumVersion)
	}

	if local != nil {
		version, found, err := local.Lookup(p.FileStem())
		switch {
		case err != nil:
			log.Warn("Unable to read package cache for %s: %v", p.Name, err)
		case found:
			p.IsInstalled = true
			p.Version = PadVersion(version)
			return
		}
	}

	if p.AppID == "" {
		return
	}
	for _, project := range workspace {
		if strings.EqualFold(project.ID, p.AppID) {
			p.IsInstalled = true
			p.Version = PadVersion(project.Version)
			return
		}
	}
}
