// Package protocols declares the message variants, packet ids, handlers and
// data fixes of every supported protocol version.
package protocols

import "sort"

// Protocol versions.
const (
	V1_14_4 int32 = 498
	V1_15   int32 = 573
	V1_15_1 int32 = 575
	V1_15_2 int32 = 578
	V1_16   int32 = 735
	V1_16_1 int32 = 736
	V1_16_2 int32 = 751
	V1_16_3 int32 = 753
	V1_16_5 int32 = 754
	V1_17   int32 = 755
	V1_17_1 int32 = 756
	V1_18   int32 = 757
	V1_18_2 int32 = 758
	V1_19   int32 = 759

	Current = V1_19
)

// VersionInfo describes one supported protocol version.
type VersionInfo struct {
	Protocol    int32  `json:"protocol"`
	Name        string `json:"name"`
	DataVersion int32  `json:"data_version"`
}

var versions = []VersionInfo{
	{V1_14_4, "1.14.4", 1976},
	{V1_15, "1.15", 2225},
	{V1_15_1, "1.15.1", 2227},
	{V1_15_2, "1.15.2", 2230},
	{V1_16, "1.16", 2566},
	{V1_16_1, "1.16.1", 2567},
	{V1_16_2, "1.16.2", 2578},
	{V1_16_3, "1.16.3", 2580},
	{V1_16_5, "1.16.5", 2586},
	{V1_17, "1.17", 2724},
	{V1_17_1, "1.17.1", 2730},
	{V1_18, "1.18.1", 2865},
	{V1_18_2, "1.18.2", 2975},
	{V1_19, "1.19", 3105},
}

var byProtocol = func() map[int32]VersionInfo {
	m := make(map[int32]VersionInfo, len(versions))
	for _, v := range versions {
		m[v.Protocol] = v
	}
	return m
}()

// Versions returns every supported version, oldest first.
func Versions() []VersionInfo {
	out := append([]VersionInfo(nil), versions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Protocol < out[j].Protocol })
	return out
}

// Lookup returns the version info of a protocol number.
func Lookup(protocol int32) (VersionInfo, bool) {
	v, ok := byProtocol[protocol]
	return v, ok
}

// DataVersion returns the structured data version of a protocol number.
func DataVersion(protocol int32) (int32, bool) {
	v, ok := byProtocol[protocol]
	return v.DataVersion, ok
}

// Name returns the release name of a protocol number, or "" if unknown.
func Name(protocol int32) string {
	return byProtocol[protocol].Name
}

// ByName returns the protocol number of a release name such as "1.16.5".
func ByName(name string) (int32, bool) {
	for _, v := range versions {
		if v.Name == name {
			return v.Protocol, true
		}
	}
	return 0, false
}
