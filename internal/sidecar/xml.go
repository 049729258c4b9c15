package sidecar

import (
	"github.com/beevik/etree"
)

// keywordContainers are the two keyword conventions, in write order.
var keywordContainers = []struct {
	ns, prefix, tag string
}{
	{nsLightroom, "lightroom", "hierarchicalSubject"},
	{nsDC, "dc", "subject"},
}

func matches(e *etree.Element, ns, tag string) bool {
	return e.Tag == tag && e.NamespaceURI() == ns
}

func findFirst(root *etree.Element, ns, tag string) *etree.Element {
	if root == nil {
		return nil
	}
	if matches(root, ns, tag) {
		return root
	}
	for _, c := range root.ChildElements() {
		if found := findFirst(c, ns, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *etree.Element, ns, tag string, out []*etree.Element) []*etree.Element {
	if root == nil {
		return out
	}
	if matches(root, ns, tag) {
		out = append(out, root)
	}
	for _, c := range root.ChildElements() {
		out = findAll(c, ns, tag, out)
	}
	return out
}

func directChildren(parent *etree.Element, ns, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if matches(c, ns, tag) {
			out = append(out, c)
		}
	}
	return out
}

// readKeywords collects rdf:li text from every keyword container in the document.
func readKeywords(root *etree.Element) []string {
	var out []string
	for _, kc := range keywordContainers {
		for _, container := range findAll(root, kc.ns, kc.tag, nil) {
			for _, list := range container.ChildElements() {
				if !matches(list, nsRDF, "Bag") && !matches(list, nsRDF, "Seq") {
					continue
				}
				for _, li := range directChildren(list, nsRDF, "li") {
					out = append(out, li.Text())
				}
			}
		}
	}
	return out
}

// prefixFor returns the prefix bound to ns in scope at e, declaring preferred
// on e when the namespace is not yet bound.
func prefixFor(e *etree.Element, ns, preferred string) string {
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if a.Space == "xmlns" && a.Value == ns {
				return a.Key
			}
		}
	}
	e.CreateAttr("xmlns:"+preferred, ns)
	return preferred
}

// replace puts el where the first of old was, removing all of old, or appends
// el when old is empty.
func replace(parent *etree.Element, old []*etree.Element, el *etree.Element) {
	if len(old) == 0 {
		parent.AddChild(el)
		return
	}
	idx := old[0].Index()
	for _, o := range old {
		parent.RemoveChild(o)
	}
	parent.InsertChildAt(idx, el)
}

// dropProperty removes every ns:tag property from the document except the
// child elements of keep. Simple properties written as attributes on any
// rdf:Description are removed too, so the value written into keep is the only one.
func dropProperty(root, keep *etree.Element, ns, tag string) {
	for _, d := range findAll(root, nsRDF, "Description", nil) {
		var stale []string
		for i := range d.Attr {
			a := &d.Attr[i]
			if a.Key == tag && a.NamespaceURI() == ns {
				stale = append(stale, a.FullKey())
			}
		}
		for _, key := range stale {
			d.RemoveAttr(key)
		}
		if d == keep {
			continue
		}
		for _, c := range directChildren(d, ns, tag) {
			d.RemoveChild(c)
		}
	}
}

func replaceKeywords(root, desc *etree.Element, keywords []string) {
	rdf := prefixFor(desc, nsRDF, "rdf")
	for _, kc := range keywordContainers {
		prefix := prefixFor(desc, kc.ns, kc.prefix)
		container := etree.NewElement(prefix + ":" + kc.tag)
		bag := container.CreateElement(rdf + ":Bag")
		for _, k := range keywords {
			bag.CreateElement(rdf + ":li").SetText(k)
		}
		dropProperty(root, desc, kc.ns, kc.tag)
		replace(desc, directChildren(desc, kc.ns, kc.tag), container)
	}
}

func setText(root, desc *etree.Element, ns, preferred, tag, text string) {
	dropProperty(root, desc, ns, tag)
	prefix := prefixFor(desc, ns, preferred)
	el := etree.NewElement(prefix + ":" + tag)
	el.SetText(text)
	replace(desc, directChildren(desc, ns, tag), el)
}

// propertyText returns the first ns:tag value on any rdf:Description, in
// document order, written either as a child element or as an attribute.
func propertyText(root *etree.Element, ns, tag string) (string, bool) {
	for _, d := range findAll(root, nsRDF, "Description", nil) {
		if found := directChildren(d, ns, tag); len(found) > 0 {
			return found[0].Text(), true
		}
		for i := range d.Attr {
			if a := &d.Attr[i]; a.Key == tag && a.NamespaceURI() == ns {
				return a.Value, true
			}
		}
	}
	return "", false
}
