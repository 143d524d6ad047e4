package osmparser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const osmFixture = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="45.7500" lon="4.8500" version="1"/>
  <node id="2" lat="45.7510" lon="4.8500" version="1"/>
  <node id="3" lat="45.7520" lon="4.8500" version="1"/>
  <node id="4" lat="45.7520" lon="4.8510" version="1"/>
  <node id="5" lat="45.7600" lon="4.8600" version="1"/>
  <node id="6" lat="45.7610" lon="4.8600" version="1"/>
  <node id="7" lat="45.7530" lon="4.8510" version="1"/>
  <way id="100" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Rue Duguesclin"/>
  </way>
  <way id="101" version="1">
    <nd ref="3"/>
    <nd ref="4"/>
    <tag k="highway" v="tertiary"/>
    <tag k="oneway" v="yes"/>
    <tag k="name" v="Rue Bossuet"/>
  </way>
  <way id="102" version="1">
    <nd ref="5"/>
    <nd ref="6"/>
    <tag k="highway" v="motorway"/>
  </way>
  <way id="103" version="1">
    <nd ref="4"/>
    <nd ref="7"/>
    <tag k="highway" v="service"/>
    <tag k="oneway" v="-1"/>
  </way>
</osm>`

func TestParseOSMXML(t *testing.T) {
	p := NewOSMParser()
	g, err := p.ParseFrom(context.Background(), strings.NewReader(osmFixture), FORMAT_OSM_XML, zap.NewNop())
	require.NoError(t, err)

	// motorway nodes 5 and 6 are dropped
	assert.Equal(t, 5, g.NumberOfVertices())
	assert.False(t, g.HasNode(5))
	assert.False(t, g.HasNode(6))

	segments := g.Segments()
	type arc struct{ from, to int64 }
	got := make(map[arc]da.RoadSegment, len(segments))
	for _, s := range segments {
		got[arc{s.Origin, s.Destination}] = s
	}

	testCases := []struct {
		name     string
		from, to int64
		present  bool
		street   string
	}{
		{name: "two-way forward", from: 1, to: 2, present: true, street: "Rue Duguesclin"},
		{name: "two-way backward", from: 2, to: 1, present: true, street: "Rue Duguesclin"},
		{name: "oneway yes forward", from: 3, to: 4, present: true, street: "Rue Bossuet"},
		{name: "oneway yes backward", from: 4, to: 3, present: false},
		{name: "oneway -1 forward", from: 4, to: 7, present: false},
		{name: "oneway -1 backward", from: 7, to: 4, present: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, ok := got[arc{tc.from, tc.to}]
			require.Equal(t, tc.present, ok)
			if ok {
				assert.Equal(t, tc.street, s.StreetName)
			}
		})
	}

	// 0.001 degree of latitude is about 111 m
	assert.InDelta(t, 111.2, got[arc{1, 2}].Length, 0.5)
}

func TestParseFileFormat(t *testing.T) {
	dir := t.TempDir()
	mapFile := filepath.Join(dir, "lyon.osm")
	require.NoError(t, os.WriteFile(mapFile, []byte(osmFixture), 0o644))

	g, err := NewOSMParser().Parse(context.Background(), mapFile, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, g.NumberOfVertices())

	_, err = NewOSMParser().Parse(context.Background(), filepath.Join(dir, "lyon.geojson"), zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownMapFormat)
}

func TestFormatOf(t *testing.T) {
	testCases := []struct {
		file    string
		want    MapFormat
		wantErr bool
	}{
		{file: "a.osm", want: FORMAT_OSM_XML},
		{file: "a.XML", want: FORMAT_OSM_XML},
		{file: "/data/rhone-alpes-latest.osm.pbf", want: FORMAT_OSM_PBF},
		{file: "a.graph", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.file, func(t *testing.T) {
			got, err := FormatOf(tc.file)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMapFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

const planFixture = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<reseau>
  <noeud id="25175791" latitude="45.75406" longitude="4.857418"/>
  <noeud id="2129259178" latitude="45.750404" longitude="4.8744674"/>
  <noeud id="26086130" latitude="45.75871" longitude="4.8704023"/>
  <troncon destination="2129259178" longueur="69.979805" nomRue="Rue Danton" origine="25175791"/>
  <troncon destination="25175791" longueur="69.979805" nomRue="Rue Danton" origine="2129259178"/>
  <troncon destination="26086130" longueur="136.00636" nomRue="Rue de l'Abondance" origine="2129259178"/>
</reseau>`

const demandFixture = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<demandeDeLivraisons>
  <entrepot adresse="25175791" heureDepart="8:0:0"/>
  <livraison adresseEnlevement="2129259178" adresseLivraison="26086130" dureeEnlevement="180" dureeLivraison="240"/>
</demandeDeLivraisons>`

func TestParsePlanXML(t *testing.T) {
	g, err := ParsePlanXML(strings.NewReader(planFixture))
	require.NoError(t, err)
	assert.Equal(t, 3, g.NumberOfVertices())
	assert.Equal(t, 3, g.NumberOfEdges())

	u, ok := g.IndexOf(2129259178)
	require.True(t, ok)
	v, ok := g.IndexOf(26086130)
	require.True(t, ok)
	e, ok := g.GetEdgeBetween(u, v)
	require.True(t, ok)
	assert.InDelta(t, 136.00636, e.GetLength(), 1e-9)
	assert.Equal(t, "Rue de l'Abondance", g.GetStreetName(e))
}

func TestParsePlanXMLErrors(t *testing.T) {
	testCases := []struct {
		name string
		xml  string
	}{
		{name: "not xml", xml: "plan"},
		{name: "no nodes", xml: "<reseau></reseau>"},
		{name: "unknown segment endpoint", xml: `<reseau><noeud id="1" latitude="45" longitude="4"/>` +
			`<troncon origine="1" destination="2" longueur="3" nomRue=""/></reseau>`},
		{name: "negative length", xml: `<reseau><noeud id="1" latitude="45" longitude="4"/><noeud id="2" latitude="45" longitude="4"/>` +
			`<troncon origine="1" destination="2" longueur="-3" nomRue=""/></reseau>`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlanXML(strings.NewReader(tc.xml))
			assert.Error(t, err)
		})
	}
}

func TestParseDemandXML(t *testing.T) {
	demand, err := ParseDemandXML(strings.NewReader(demandFixture))
	require.NoError(t, err)

	assert.Equal(t, int64(25175791), demand.Depot.NodeID)
	assert.Equal(t, "8:0:0", demand.Depot.DepartureTime)
	require.Len(t, demand.Requests, 1)
	assert.Equal(t, da.NewDeliveryRequest(2129259178, 26086130, 180, 240), demand.Requests[0])

	dep, err := demand.DepartureSeconds()
	require.NoError(t, err)
	assert.Equal(t, 8*3600.0, dep)
}

func TestParseDemandXMLErrors(t *testing.T) {
	_, err := ParseDemandXML(strings.NewReader(`<demandeDeLivraisons><livraison adresseEnlevement="1" adresseLivraison="2" dureeEnlevement="0" dureeLivraison="0"/></demandeDeLivraisons>`))
	assert.ErrorIs(t, err, ErrMissingDepot)

	_, err = ParseDemandXML(strings.NewReader(`<demandeDeLivraisons><entrepot adresse="1" heureDepart="8:0:0"/><livraison adresseEnlevement="1" adresseLivraison="2" dureeEnlevement="-5" dureeLivraison="0"/></demandeDeLivraisons>`))
	assert.ErrorIs(t, err, da.ErrInvalidServiceDuration)
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	planFile := filepath.Join(dir, "petitPlan.xml")
	demandFile := filepath.Join(dir, "demandePetit1.xml")
	require.NoError(t, os.WriteFile(planFile, []byte(planFixture), 0o644))
	require.NoError(t, os.WriteFile(demandFile, []byte(demandFixture), 0o644))

	g, err := ParsePlanFile(planFile)
	require.NoError(t, err)
	demand, err := ParseDemandFile(demandFile)
	require.NoError(t, err)
	assert.True(t, g.HasNode(demand.Depot.NodeID))

	_, err = ParsePlanFile(filepath.Join(dir, "missing.xml"))
	assert.Error(t, err)
}
