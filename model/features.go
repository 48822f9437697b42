package model

// FeatureVector is the eight-feature classifier input, in model order.
type FeatureVector struct {
	Pregnancies              float64 `json:"pregnancies"`
	Glucose                  float64 `json:"glucose"`
	BloodPressure            float64 `json:"blood_pressure"`
	SkinThickness            float64 `json:"skin_thickness"`
	Insulin                  float64 `json:"insulin"`
	BMI                      float64 `json:"bmi"`
	DiabetesPedigreeFunction float64 `json:"diabetes_pedigree_function"`
	Age                      float64 `json:"age"`
}

// Weights holds one coefficient per feature.
type Weights FeatureVector

// NumFeatures is the number of features and weights.
const NumFeatures = 8

// Divisors normalize each feature to the training range.
var Divisors = FeatureVector{
	Pregnancies:              28,
	Glucose:                  200,
	BloodPressure:            125,
	SkinThickness:            100,
	Insulin:                  850,
	BMI:                      68,
	DiabetesPedigreeFunction: 2.45,
	Age:                      100,
}

// values returns the features in model order. This is the only place the
// positional layout of the buffer format is defined.
func (v FeatureVector) values() [NumFeatures]float64 {
	return [NumFeatures]float64{
		v.Pregnancies,
		v.Glucose,
		v.BloodPressure,
		v.SkinThickness,
		v.Insulin,
		v.BMI,
		v.DiabetesPedigreeFunction,
		v.Age,
	}
}

func fromValues(x [NumFeatures]float64) FeatureVector {
	return FeatureVector{
		Pregnancies:              x[0],
		Glucose:                  x[1],
		BloodPressure:            x[2],
		SkinThickness:            x[3],
		Insulin:                  x[4],
		BMI:                      x[5],
		DiabetesPedigreeFunction: x[6],
		Age:                      x[7],
	}
}
