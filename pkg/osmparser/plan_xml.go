package osmparser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	da "github.com/lintang-b-s/courierx/pkg/datastructure"
)

var ErrMissingDepot = errors.New("demand file has no entrepot element")

type xmlNoeud struct {
	ID        int64   `xml:"id,attr"`
	Latitude  float64 `xml:"latitude,attr"`
	Longitude float64 `xml:"longitude,attr"`
}

type xmlTroncon struct {
	Origine     int64   `xml:"origine,attr"`
	Destination int64   `xml:"destination,attr"`
	Longueur    float64 `xml:"longueur,attr"`
	NomRue      string  `xml:"nomRue,attr"`
}

type xmlReseau struct {
	XMLName  xml.Name     `xml:"reseau"`
	Noeuds   []xmlNoeud   `xml:"noeud"`
	Troncons []xmlTroncon `xml:"troncon"`
}

type xmlEntrepot struct {
	Adresse     int64  `xml:"adresse,attr"`
	HeureDepart string `xml:"heureDepart,attr"`
}

type xmlLivraison struct {
	AdresseEnlevement int64   `xml:"adresseEnlevement,attr"`
	AdresseLivraison  int64   `xml:"adresseLivraison,attr"`
	DureeEnlevement   float64 `xml:"dureeEnlevement,attr"`
	DureeLivraison    float64 `xml:"dureeLivraison,attr"`
}

type xmlDemande struct {
	XMLName    xml.Name       `xml:"demandeDeLivraisons"`
	Entrepot   *xmlEntrepot   `xml:"entrepot"`
	Livraisons []xmlLivraison `xml:"livraison"`
}

// ParsePlanXML reads a city plan: <noeud id latitude longitude/> nodes and <troncon origine destination
// longueur nomRue/> one-way segments, lengths in meters.
func ParsePlanXML(r io.Reader) (*da.RoadGraph, error) {
	var reseau xmlReseau
	if err := xml.NewDecoder(r).Decode(&reseau); err != nil {
		return nil, fmt.Errorf("decode plan xml: %w", err)
	}

	nodes := make([]da.Node, len(reseau.Noeuds))
	for i, n := range reseau.Noeuds {
		nodes[i] = da.NewNode(n.ID, n.Latitude, n.Longitude)
	}
	segments := make([]da.RoadSegment, len(reseau.Troncons))
	for i, t := range reseau.Troncons {
		segments[i] = da.NewRoadSegment(t.Origine, t.Destination, t.Longueur, t.NomRue)
	}
	return da.NewRoadGraph(nodes, segments)
}

// ParseDemandXML reads the depot and the ordered delivery requests. Durations are in seconds.
func ParseDemandXML(r io.Reader) (da.DemandSet, error) {
	var demande xmlDemande
	if err := xml.NewDecoder(r).Decode(&demande); err != nil {
		return da.DemandSet{}, fmt.Errorf("decode demand xml: %w", err)
	}
	if demande.Entrepot == nil {
		return da.DemandSet{}, ErrMissingDepot
	}

	requests := make([]da.DeliveryRequest, len(demande.Livraisons))
	for i, l := range demande.Livraisons {
		requests[i] = da.NewDeliveryRequest(l.AdresseEnlevement, l.AdresseLivraison, l.DureeEnlevement, l.DureeLivraison)
	}
	demand := da.NewDemandSet(da.Depot{
		NodeID:        demande.Entrepot.Adresse,
		DepartureTime: demande.Entrepot.HeureDepart,
	}, requests)
	if err := demand.Validate(); err != nil {
		return da.DemandSet{}, err
	}
	return demand, nil
}

func ParsePlanFile(path string) (*da.RoadGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePlanXML(f)
}

func ParseDemandFile(path string) (da.DemandSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return da.DemandSet{}, err
	}
	defer f.Close()
	return ParseDemandXML(f)
}
