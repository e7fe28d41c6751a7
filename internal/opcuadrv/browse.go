// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcuadrv

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"

	"github.com/scadalite/engine/internal/scadaerr"
)

// resolvePath walks path's "ns:BrowseName" components from the Objects
// folder, descending one hierarchical reference per component. A
// component without an "ns:" prefix is assumed namespace 0.
func resolvePath(ctx context.Context, c *opcua.Client, path string) (*ua.NodeID, error) {
	cur := ua.NewNumericNodeID(0, id.ObjectsFolder)
	for _, comp := range pathComponents(path) {
		ns, name := 0, comp
		if i := strings.IndexByte(comp, ':'); i >= 0 {
			if n, err := strconv.Atoi(comp[:i]); err == nil {
				ns, name = n, comp[i+1:]
			}
		}

		refs, err := c.Node(cur).ReferencedNodes(ctx, id.HierarchicalReferences, ua.BrowseDirectionForward, ua.NodeClassAll, true)
		if err != nil {
			return nil, fmt.Errorf("opcua: browse %q: %w", comp, scadaerr.ErrProtocol)
		}

		found := false
		for _, ref := range refs {
			bn, err := ref.BrowseName(ctx)
			if err != nil {
				continue
			}
			if bn.Name == name && int(ref.ID.Namespace()) == ns {
				cur = ref.ID
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("opcua: %q not found under %s: %w", comp, cur, scadaerr.ErrUnknownTag)
		}
	}
	return cur, nil
}

// browseDataType reads the DataType attribute of a Variable node and
// returns its builtin type id used for write coercion: 1=bool,
// 2-9=integer widths, 10-11=float/double, 12=string, 13=datetime.
func browseDataType(ctx context.Context, c *opcua.Client, nid *ua.NodeID) (ua.TypeID, error) {
	v, err := c.Node(nid).Attribute(ctx, ua.AttributeIDDataType)
	if err != nil || v == nil || v.Value == nil {
		return 0, fmt.Errorf("opcua: data type of %s: %w", nid, scadaerr.ErrProtocol)
	}
	dt := v.Value.NodeID()
	return ua.TypeID(dt.IntID()), nil
}

// PrintTree writes an indented dump of the address space reachable from
// the Objects folder, mirroring the source driver's diagnostic
// printTree() helper used when wiring up a new PLC's tag list by hand.
func PrintTree(ctx context.Context, c *opcua.Client, w io.Writer) error {
	return printChildren(ctx, c, w, ua.NewNumericNodeID(0, id.ObjectsFolder), 0)
}

func printChildren(ctx context.Context, c *opcua.Client, w io.Writer, nid *ua.NodeID, depth int) error {
	refs, err := c.Node(nid).ReferencedNodes(ctx, id.HierarchicalReferences, ua.BrowseDirectionForward, ua.NodeClassAll, true)
	if err != nil {
		return fmt.Errorf("opcua: browse %s: %w", nid, scadaerr.ErrProtocol)
	}
	for _, ref := range refs {
		bn, err := ref.BrowseName(ctx)
		name := ref.ID.String()
		if err == nil {
			name = bn.Name
		}
		fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), name, ref.ID)
		if depth < 8 {
			_ = printChildren(ctx, c, w, ref.ID, depth+1)
		}
	}
	return nil
}
