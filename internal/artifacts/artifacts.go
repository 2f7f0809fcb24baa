package artifacts

import _ "embed"

// Global artifacts

//go:embed global/settings.yaml
var GlobalSettings []byte

// Samba artifacts

//go:embed samba/smb.conf.tmpl
var SambaConfigTemplate string
