package domain

// BuildPhase is one step of a package recipe as reported by the build
// executor. The test phase is optional; everything else always runs.
type BuildPhase string

const (
	PhaseExtract   BuildPhase = "extract"
	PhasePatch     BuildPhase = "patch"
	PhaseConfigure BuildPhase = "configure"
	PhaseCompile   BuildPhase = "compile"
	PhaseTest      BuildPhase = "test"
	PhaseInstall   BuildPhase = "install"
	PhaseValidate  BuildPhase = "validate"
)

// BuildPhases lists all phases in execution order.
var BuildPhases = []BuildPhase{
	PhaseExtract,
	PhasePatch,
	PhaseConfigure,
	PhaseCompile,
	PhaseTest,
	PhaseInstall,
	PhaseValidate,
}

// String returns the phase name as passed to the recipe runner.
func (p BuildPhase) String() string { return string(p) }
