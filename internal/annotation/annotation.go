// Package annotation parses grouped polygon annotations from ASAP-style XML
// files and assigns stable integer codes to annotation groups.
package annotation

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"slidemask/pkg/geometry"
)

// Polygon is an ordered vertex list in level-0 pixel coordinates.
type Polygon []geometry.Point2D

// Group holds every polygon belonging to one annotation group, in the order
// the polygons appear in the source file.
type Group struct {
	Label    string
	Polygons []Polygon
}

// xmlAnnotation mirrors one <Annotation> element. Only the group attribute and
// the nested coordinate list are consumed; name, type and color are ignored.
type xmlAnnotation struct {
	PartOfGroup string `xml:"PartOfGroup,attr"`
	Coordinates *struct {
		Coordinate []struct {
			X string `xml:"X,attr"`
			Y string `xml:"Y,attr"`
		} `xml:"Coordinate"`
	} `xml:"Coordinates"`
}

// Parse reads one annotation file and returns its polygons grouped by label.
// Raw coordinates are multiplied componentwise by factor, so the result is in
// level-0 pixel space. Group order and per-group polygon order both follow
// first appearance in the file; overlap resolution depends on this order.
// Annotation elements without a coordinate list are skipped.
func Parse(path string, factor geometry.Scale) ([]Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation: %w", err)
	}
	defer f.Close()

	groups, err := parseGroups(f, factor)
	if err != nil {
		return nil, fmt.Errorf("parse annotation %s: %w", path, err)
	}
	return groups, nil
}

func parseGroups(r io.Reader, factor geometry.Scale) ([]Group, error) {
	dec := xml.NewDecoder(r)

	var groups []Group
	index := make(map[string]int)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Annotation" {
			continue
		}

		var ann xmlAnnotation
		if err := dec.DecodeElement(&ann, &start); err != nil {
			return nil, err
		}
		if ann.Coordinates == nil {
			continue
		}

		poly := make(Polygon, 0, len(ann.Coordinates.Coordinate))
		for _, c := range ann.Coordinates.Coordinate {
			x, err := strconv.ParseFloat(c.X, 64)
			if err != nil {
				return nil, fmt.Errorf("coordinate X %q: %w", c.X, err)
			}
			y, err := strconv.ParseFloat(c.Y, 64)
			if err != nil {
				return nil, fmt.Errorf("coordinate Y %q: %w", c.Y, err)
			}
			poly = append(poly, geometry.Point2D{X: x * factor.X, Y: y * factor.Y})
		}

		i, seen := index[ann.PartOfGroup]
		if !seen {
			i = len(groups)
			index[ann.PartOfGroup] = i
			groups = append(groups, Group{Label: ann.PartOfGroup})
		}
		groups[i].Polygons = append(groups[i].Polygons, poly)
	}

	return groups, nil
}

// collectLabels returns the distinct non-empty group labels in one annotation
// file, for registry construction. Coordinates are not decoded.
func collectLabels(path string, labels map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open annotation: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse annotation %s: %w", path, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Annotation" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "PartOfGroup" && attr.Value != "" {
				labels[attr.Value] = struct{}{}
			}
		}
	}
}
