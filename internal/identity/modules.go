package identity

// Feature modules gated per role through the access grid. The catalog is
// fixed at build time; the grid rows referencing it are tenant data.
const (
	ModuleTasks        = "tasks"
	ModuleAudits       = "audits"
	ModuleCampaigns    = "campaigns"
	ModuleTraining     = "training"
	ModuleReports      = "reports"
	ModuleGamification = "gamification"
	ModuleNews         = "news"
	ModuleDirectory    = "directory"
)

// KnownModules lists every module key, in display order. Super admins resolve
// to exactly this set.
var KnownModules = []string{
	ModuleTasks,
	ModuleAudits,
	ModuleCampaigns,
	ModuleTraining,
	ModuleReports,
	ModuleGamification,
	ModuleNews,
	ModuleDirectory,
}

var knownModuleSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(KnownModules))
	for _, key := range KnownModules {
		set[key] = struct{}{}
	}
	return set
}()

// IsKnownModule reports whether key names a module in the catalog.
func IsKnownModule(key string) bool {
	_, ok := knownModuleSet[key]
	return ok
}

// AllModules returns a fresh copy of the catalog so callers cannot mutate it.
func AllModules() []string {
	out := make([]string, len(KnownModules))
	copy(out, KnownModules)
	return out
}
