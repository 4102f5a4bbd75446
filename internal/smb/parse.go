package smb

import (
	"bufio"
	"bytes"
	"strings"
)

// EntryType is the first column of smbclient's grep-able (-g) output.
type EntryType string

const (
	EntryDisk      EntryType = "Disk"
	EntryPrinter   EntryType = "Printer"
	EntryIPC       EntryType = "IPC"
	EntryServer    EntryType = "Server"
	EntryWorkgroup EntryType = "Workgroup"
)

// Entry is one share advertised by a host.
type Entry struct {
	Type    EntryType `json:"type"`
	Name    string    `json:"name"`
	Comment string    `json:"comment,omitempty"`
}

// Browse is a peer seen in a host's browse list: a server and its comment,
// or a workgroup and its master browser.
type Browse struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// Listing is the parsed result of `smbclient -g -L //host`.
type Listing struct {
	Shares     []Entry  `json:"shares"`
	Servers    []Browse `json:"servers,omitempty"`
	Workgroups []Browse `json:"workgroups,omitempty"`
}

// ParseListing parses smbclient -g output. Lines that are not in
// Type|Name|Comment form are ignored; the comment column may itself contain
// '|' characters.
func ParseListing(out []byte) Listing {
	listing := Listing{Shares: []Entry{}}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimSpace(scanner.Text()), "|", 3)
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		var detail string
		if len(fields) == 3 {
			detail = fields[2]
		}

		switch typ := EntryType(fields[0]); typ {
		case EntryDisk, EntryPrinter, EntryIPC:
			listing.Shares = append(listing.Shares, Entry{Type: typ, Name: fields[1], Comment: detail})
		case EntryServer:
			listing.Servers = append(listing.Servers, Browse{Name: fields[1], Detail: detail})
		case EntryWorkgroup:
			listing.Workgroups = append(listing.Workgroups, Browse{Name: fields[1], Detail: detail})
		}
	}
	return listing
}
