// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package bridge implements a VLAN-aware learning switch.

A [*Port] is a promiscuous [*ether.Interface] operating either in access
mode, carrying a single untagged VLAN, or in trunk mode, carrying tagged
frames for a set of allowed VLANs plus an untagged native VLAN. Inside
the switch every frame is tagged: ports add the tag on ingress and
remove it on egress as their mode requires.

A [*Switch] learns the port behind each (MAC, VLAN) pair in its [*CAM]
table, forwards frames for known destinations through a single port, and
floods frames for unknown destinations through every other up/up port
carrying the same VLAN. Entries not refreshed within the CAM timeout are
purged before each forwarding pass.
*/
package bridge
