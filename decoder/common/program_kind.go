package common

import "fmt"

// ProgramKind identifies the AMM family that owns a pool account.
type ProgramKind uint8

const (
	Unknown ProgramKind = iota
	RaydiumLegacyAmm
	RaydiumCpmm
	RaydiumClmm
	OrcaWhirlpool
	MeteoraDlmm
	MeteoraDamm
	PumpFunLegacy
	PumpFunAmm
)

var programKindNames = map[ProgramKind]string{
	Unknown:          "unknown",
	RaydiumLegacyAmm: "raydium_legacy_amm",
	RaydiumCpmm:      "raydium_cpmm",
	RaydiumClmm:      "raydium_clmm",
	OrcaWhirlpool:    "orca_whirlpool",
	MeteoraDlmm:      "meteora_dlmm",
	MeteoraDamm:      "meteora_damm",
	PumpFunLegacy:    "pumpfun_legacy",
	PumpFunAmm:       "pumpfun_amm",
}

// KnownProgramKinds lists every supported kind, excluding Unknown.
func KnownProgramKinds() []ProgramKind {
	return []ProgramKind{
		RaydiumLegacyAmm,
		RaydiumCpmm,
		RaydiumClmm,
		OrcaWhirlpool,
		MeteoraDlmm,
		MeteoraDamm,
		PumpFunLegacy,
		PumpFunAmm,
	}
}

func (k ProgramKind) String() string {
	if name, ok := programKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("program_kind(%d)", uint8(k))
}

// ParseProgramKind resolves the snake_case name used in configuration files.
func ParseProgramKind(name string) (ProgramKind, error) {
	for kind, n := range programKindNames {
		if n == name && kind != Unknown {
			return kind, nil
		}
	}
	return Unknown, fmt.Errorf("unknown program kind %q", name)
}

// MarshalText encodes the kind by name so it reads well in JSON and YAML.
func (k ProgramKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText, including "unknown".
func (k *ProgramKind) UnmarshalText(text []byte) error {
	if string(text) == programKindNames[Unknown] {
		*k = Unknown
		return nil
	}
	kind, err := ParseProgramKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
