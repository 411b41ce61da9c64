package utils

/*
ConvertToFloat32 narrows a float64 vector, the shape most embedding APIs
return, to the float32 representation stored on an engram.
*/
func ConvertToFloat32(f []float64) []float32 {
	out := make([]float32, len(f))

	for i, v := range f {
		out[i] = float32(v)
	}

	return out
}

/*
ConvertToFloat64 widens a stored embedding back to float64, which is the
shape JSON vector-index payloads expect.
*/
func ConvertToFloat64(f []float32) []float64 {
	out := make([]float64, len(f))

	for i, v := range f {
		out[i] = float64(v)
	}

	return out
}
