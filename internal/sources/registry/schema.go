package registry

// File is the top-level structure of the services file.
//
//	services:
//	  - label: 3CX SBC
//	    identifier: 3cxsbc
//	  - label: SSH
//	    identifier: ssh
type File struct {
	Services []Entry `yaml:"services"`
}

// Entry is one monitored service.
type Entry struct {
	Label      string `yaml:"label"`
	Identifier string `yaml:"identifier"`
}
