package spacing

// Ground coverage ratio by rounded mean slope (rows: 0, 10, 20, 30, 40
// degrees) and aspect key (columns: -180 to 180 in steps of 10, where 0 is
// a south-facing slope). 0.0001 marks orientations that are effectively
// unbuildable but still finite.

const (
	slopeStep  = 10
	aspectStep = 10
	slopeRows  = 5
	aspectCols = 37
)

var lowTable = [slopeRows][aspectCols]float64{
	{0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366,
		0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366, 0.366},
	{0.123, 0.127, 0.138, 0.156, 0.180, 0.210, 0.245, 0.283, 0.324, 0.366, 0.408, 0.448, 0.485, 0.518, 0.546, 0.568, 0.584, 0.594,
		0.598, 0.594, 0.584, 0.568, 0.546, 0.518, 0.485, 0.448, 0.408, 0.366, 0.324, 0.283, 0.245, 0.210, 0.180, 0.156, 0.138, 0.127, 0.123},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.045, 0.116, 0.194, 0.279, 0.366, 0.451, 0.532, 0.605, 0.668, 0.719, 0.750, 0.750, 0.750,
		0.750, 0.750, 0.750, 0.750, 0.719, 0.668, 0.605, 0.532, 0.451, 0.366, 0.279, 0.194, 0.116, 0.045, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.094, 0.228, 0.366, 0.500, 0.624, 0.731, 0.750, 0.750, 0.750, 0.750,
		0.750, 0.750, 0.750, 0.750, 0.750, 0.750, 0.731, 0.624, 0.500, 0.366, 0.228, 0.094, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.165, 0.366, 0.559, 0.729, 0.750, 0.750, 0.750, 0.750, 0.750, 0.750,
		0.750, 0.750, 0.750, 0.750, 0.750, 0.750, 0.750, 0.729, 0.559, 0.366, 0.165, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
}

var highTable = [slopeRows][aspectCols]float64{
	{0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259,
		0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259, 0.259},
	{0.087, 0.090, 0.097, 0.110, 0.127, 0.148, 0.173, 0.200, 0.229, 0.259, 0.288, 0.317, 0.343, 0.366, 0.386, 0.402, 0.413, 0.420,
		0.423, 0.420, 0.413, 0.402, 0.386, 0.366, 0.343, 0.317, 0.288, 0.259, 0.229, 0.200, 0.173, 0.148, 0.127, 0.110, 0.097, 0.090, 0.087},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.032, 0.082, 0.138, 0.197, 0.259, 0.319, 0.376, 0.428, 0.472, 0.509, 0.537, 0.557, 0.570,
		0.574, 0.570, 0.557, 0.537, 0.509, 0.472, 0.428, 0.376, 0.319, 0.259, 0.197, 0.138, 0.082, 0.032, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.067, 0.161, 0.259, 0.354, 0.441, 0.517, 0.579, 0.627, 0.663, 0.688, 0.702,
		0.707, 0.702, 0.688, 0.663, 0.627, 0.579, 0.517, 0.441, 0.354, 0.259, 0.161, 0.067, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
	{0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.117, 0.259, 0.395, 0.515, 0.612, 0.686, 0.740, 0.750, 0.750, 0.750,
		0.750, 0.750, 0.750, 0.750, 0.750, 0.740, 0.686, 0.612, 0.515, 0.395, 0.259, 0.117, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001, 0.0001},
}
