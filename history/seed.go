package history

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
)

// LoadIndexInfos reads a YAML list of index metadata:
//
//	- id: FUNDEP
//	  domain: Vestibular da FUNDEP
//	  intro: Olá! ...
//	  disclaimer: ...
//
// An empty path yields no rows.
func LoadIndexInfos(path string) ([]IndexInfo, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.KindConfig, "read index infos", err)
	}
	var infos []IndexInfo
	if err := yaml.Unmarshal(raw, &infos); err != nil {
		return nil, errs.E(errs.KindConfig, "parse index infos", err)
	}
	return infos, nil
}
