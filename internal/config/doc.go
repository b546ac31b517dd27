// Package config loads and saves the sockserve configuration file.
//
// The file is YAML and lists the servers to run, each naming a service,
// a transport and the engine limits for that listener. Missing fields
// take the engine defaults and a missing file yields Default().
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/sockserve/config.yaml or $HOME/.config/sockserve/config.yaml
//   - macOS: $HOME/.config/sockserve/config.yaml
//   - Windows: %LOCALAPPDATA%\sockserve\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    var ve *config.ValidationError
//	    if errors.As(err, &ve) {
//	        log.Fatalf("%s: %s", ve.Field, ve.Reason)
//	    }
//	    log.Fatal(err)
//	}
//
//	for _, s := range cfg.Servers {
//	    fmt.Println(s.Name, s.Address)
//	}
//
// # Thread Safety
//
// Save is protected by a mutex and writes through a temporary file and
// rename, so readers never observe a partial file.
package config
