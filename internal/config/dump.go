// SPDX-License-Identifier: MPL-2.0

package config

import "github.com/pelletier/go-toml/v2"

type (
	// tomlView mirrors Config with durations rendered as strings, so the
	// dump reads the same way the CUE file is written.
	tomlView struct {
		Log        tomlLog        `toml:"log"`
		Tools      tomlTools      `toml:"tools"`
		Rootfs     tomlRootfs     `toml:"rootfs"`
		Supervisor tomlSupervisor `toml:"supervisor"`
		Readiness  tomlReadiness  `toml:"readiness"`
	}

	tomlLog struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	}

	tomlTools struct {
		Nspawn     string `toml:"nspawn"`
		SystemdRun string `toml:"systemd_run"`
		Machinectl string `toml:"machinectl"`
	}

	tomlRootfs struct {
		ResolvConf string `toml:"resolv_conf"`
	}

	tomlSupervisor struct {
		CheckTimeout  string `toml:"check_timeout"`
		PoweroffGrace string `toml:"poweroff_grace"`
	}

	tomlReadiness struct {
		Host     string `toml:"host"`
		Timeout  string `toml:"timeout"`
		Interval string `toml:"interval"`
	}
)

// ToTOML renders the configuration as TOML for `postroj config dump`.
func (c *Config) ToTOML() ([]byte, error) {
	return toml.Marshal(tomlView{
		Log:    tomlLog{Level: c.Log.Level, Format: c.Log.Format},
		Tools:  tomlTools{Nspawn: c.Tools.Nspawn, SystemdRun: c.Tools.SystemdRun, Machinectl: c.Tools.Machinectl},
		Rootfs: tomlRootfs{ResolvConf: c.Rootfs.ResolvConf},
		Supervisor: tomlSupervisor{
			CheckTimeout:  c.Supervisor.CheckTimeout.String(),
			PoweroffGrace: c.Supervisor.PoweroffGrace.String(),
		},
		Readiness: tomlReadiness{
			Host:     c.Readiness.Host,
			Timeout:  c.Readiness.Timeout.String(),
			Interval: c.Readiness.Interval.String(),
		},
	})
}
