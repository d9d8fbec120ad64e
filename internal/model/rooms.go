package model

// Room is an entry of the fixed room list used to place observations.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Rooms is the standard room list, in walkthrough order.
var Rooms = []Room{
	{ID: "r1", Name: "Acceso"},
	{ID: "r2", Name: "Cocina"},
	{ID: "r3", Name: "Estar Comedor"},
	{ID: "r4", Name: "Pasillo"},
	{ID: "r5", Name: "Dormitorio 1"},
	{ID: "r6", Name: "Dormitorio 2"},
	{ID: "r7", Name: "Baño 1"},
	{ID: "r8", Name: "Baño 2"},
	{ID: "r9", Name: "Terraza"},
	{ID: "r10", Name: "Bodega"},
	{ID: "r11", Name: "Estacionamiento"},
}

// UnknownRoom is reported for room ids outside the standard list.
const UnknownRoom = "Desconocido"

// RoomName resolves a room id to its display name.
func RoomName(id string) string {
	for _, r := range Rooms {
		if r.ID == id {
			return r.Name
		}
	}
	return UnknownRoom
}

// RoomByName finds a room by case-sensitive display name or id.
func RoomByName(s string) (Room, bool) {
	for _, r := range Rooms {
		if r.ID == s || r.Name == s {
			return r, true
		}
	}
	return Room{}, false
}
