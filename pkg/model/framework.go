package model

import "fmt"

// Framework identifies a target security policy framework.
type Framework string

const (
	FrameworkNISTCSF     Framework = "NIST_CSF"
	FrameworkISO27001    Framework = "ISO_27001"
	FrameworkCISControls Framework = "CIS_CONTROLS"
)

// Frameworks lists the supported frameworks in canonical order.
var Frameworks = []Framework{FrameworkNISTCSF, FrameworkISO27001, FrameworkCISControls}

func (f Framework) String() string {
	return string(f)
}

// ParseFramework validates a framework name from configuration or flags.
func ParseFramework(name string) (Framework, error) {
	for _, f := range Frameworks {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown framework: %s (supported: NIST_CSF, ISO_27001, CIS_CONTROLS)", name)
}
