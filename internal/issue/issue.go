// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	ToolNotFoundId Id = iota + 1
	PermissionDeniedId
	RootfsNotFoundId
	InvalidImageReferenceId
	MachineBootFailedId
	PortNotReadyId
	CommandFailedId
	ConfigLoadFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a Markdown troubleshooting page shown when an operation fails.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // documentation pages for this failure
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page with glamour. stylePath is a glamour style name
// ("dark", "light", "notty") or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	toolNotFoundIssue = &Issue{
		id: ToolNotFoundId,
		mdMsg: `
# A systemd tool is missing!

postroj drives containers through ` + "`systemd-nspawn`" + `, ` + "`systemd-run`" + ` and ` + "`machinectl`" + `.
At least one of them could not be found on PATH.

## Things you can try:
- Install the systemd container tools:
~~~
$ sudo apt install systemd-container      # Debian, Ubuntu
$ sudo dnf install systemd-container      # Fedora, CentOS
~~~

- Point postroj at custom binaries in your config file:
~~~cue
tools: {
	nspawn: "/usr/local/bin/systemd-nspawn"
}
~~~`,
		extLinks: []HttpLink{"https://www.freedesktop.org/software/systemd/man/systemd-nspawn.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

Booting a container and entering a root filesystem require root privileges.

## Things you can try:
- Run the command with sudo:
~~~
$ sudo postroj boot --directory /var/lib/postroj/images/debian-bullseye
~~~

- Check that the rootfs directory is readable by the current user`,
	}

	rootfsNotFoundIssue = &Issue{
		id: RootfsNotFoundId,
		mdMsg: `
# Root filesystem not found!

The directory passed with ` + "`--directory`" + ` does not exist or is not a directory.

## Things you can try:
- List the unpacked images:
~~~
$ ls /var/lib/postroj/images
~~~

- Check for typos in the path`,
	}

	invalidImageReferenceIssue = &Issue{
		id: InvalidImageReferenceId,
		mdMsg: `
# Unknown distribution!

The image reference does not name a distribution postroj knows about.

## Things you can try:
- List the known distributions:
~~~
$ postroj distros
~~~

- Use the full name, e.g. ` + "`debian-bullseye`" + ` or ` + "`ubuntu-jammy`",
	}

	machineBootFailedIssue = &Issue{
		id: MachineBootFailedId,
		mdMsg: `
# The container failed to boot!

` + "`systemd-nspawn --boot`" + ` exited during startup. Its output is shown above.

## Things you can try:
- Check that no machine with the same name is already running:
~~~
$ machinectl list
~~~

- Boot the root filesystem interactively to see the full console:
~~~
$ sudo systemd-nspawn --directory=<rootfs> --boot
~~~

- Inspect the journal of the machine:
~~~
$ journalctl -M <machine>
~~~`,
		extLinks: []HttpLink{"https://www.freedesktop.org/software/systemd/man/machinectl.html"},
	}

	portNotReadyIssue = &Issue{
		id: PortNotReadyId,
		mdMsg: `
# The service did not come up!

The container booted, but nothing accepted connections on the requested port
before the readiness timeout elapsed.

## Things you can try:
- Increase the timeout:
~~~cue
readiness: {
	timeout: "30s"
}
~~~

- Check the service status inside the machine:
~~~
$ sudo systemd-run --machine=<machine> --wait --quiet --pipe systemctl status
~~~`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# Command failed!

The command exited with a non-zero status. Its output is shown above, and
postroj exits with the same status.

## Things you can try:
- Re-run with debug logging to see the exact invocation:
~~~
$ postroj --log-level debug ...
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Show where postroj looks for its configuration:
~~~
$ postroj config path
~~~

- Show the effective configuration:
~~~
$ postroj config show
~~~

- Recreate a default configuration file:
~~~
$ postroj config init --force
~~~`,
	}

	issues = map[Id]*Issue{
		toolNotFoundIssue.Id():          toolNotFoundIssue,
		permissionDeniedIssue.Id():      permissionDeniedIssue,
		rootfsNotFoundIssue.Id():        rootfsNotFoundIssue,
		invalidImageReferenceIssue.Id(): invalidImageReferenceIssue,
		machineBootFailedIssue.Id():     machineBootFailedIssue,
		portNotReadyIssue.Id():          portNotReadyIssue,
		commandFailedIssue.Id():         commandFailedIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
