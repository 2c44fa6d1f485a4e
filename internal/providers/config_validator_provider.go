package providers

import (
	"fmt"
	"smd/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %s", v.Errors.One())
	}

	seen := make(map[string]struct{}, len(cv.conf.Monitor.Cameras))
	for _, cam := range cv.conf.Monitor.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("invalid configuration: camera with empty id")
		}
		if _, ok := seen[cam.ID]; ok {
			return fmt.Errorf("invalid configuration: duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = struct{}{}
	}
	return nil
}
