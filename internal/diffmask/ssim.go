package diffmask

import (
	"image"

	"gocv.io/x/gocv"
)

// Stabilizing constants from the SSIM reference formulation, scaled for
// 8-bit dynamic range: C1=(K1*L)^2, C2=(K2*L)^2 with K1=0.01, K2=0.03,
// L=255.
const (
	ssimC1 = 6.5025
	ssimC2 = 58.5225
)

var ssimWindow = image.Point{X: 11, Y: 11}

const ssimSigma = 1.5

// SSIM computes the structural similarity between two equally-sized
// grayscale images. Returns the scalar similarity in [0,1] and the
// per-pixel similarity map as a CV32F Mat of the same dimensions.
// The caller owns the returned map.
func SSIM(gray1, gray2 gocv.Mat) (float64, gocv.Mat) {
	img1 := gocv.NewMat()
	defer img1.Close()
	gray1.ConvertTo(&img1, gocv.MatTypeCV32F)

	img2 := gocv.NewMat()
	defer img2.Close()
	gray2.ConvertTo(&img2, gocv.MatTypeCV32F)

	mu1 := blurF(img1)
	defer mu1.Close()
	mu2 := blurF(img2)
	defer mu2.Close()

	mu1Sq := gocv.NewMat()
	defer mu1Sq.Close()
	gocv.Multiply(mu1, mu1, &mu1Sq)

	mu2Sq := gocv.NewMat()
	defer mu2Sq.Close()
	gocv.Multiply(mu2, mu2, &mu2Sq)

	mu1Mu2 := gocv.NewMat()
	defer mu1Mu2.Close()
	gocv.Multiply(mu1, mu2, &mu1Mu2)

	// sigma1^2 = E[x^2] - mu1^2, and likewise for sigma2^2 and sigma12
	sigma1Sq := varianceTerm(img1, img1, mu1Sq)
	defer sigma1Sq.Close()
	sigma2Sq := varianceTerm(img2, img2, mu2Sq)
	defer sigma2Sq.Close()
	sigma12 := varianceTerm(img1, img2, mu1Mu2)
	defer sigma12.Close()

	// numerator = (2*mu1*mu2 + C1) * (2*sigma12 + C2)
	t1 := mu1Mu2.Clone()
	defer t1.Close()
	t1.MultiplyFloat(2)
	t1.AddFloat(ssimC1)

	t2 := sigma12.Clone()
	defer t2.Close()
	t2.MultiplyFloat(2)
	t2.AddFloat(ssimC2)

	num := gocv.NewMat()
	defer num.Close()
	gocv.Multiply(t1, t2, &num)

	// denominator = (mu1^2 + mu2^2 + C1) * (sigma1^2 + sigma2^2 + C2)
	d1 := gocv.NewMat()
	defer d1.Close()
	gocv.Add(mu1Sq, mu2Sq, &d1)
	d1.AddFloat(ssimC1)

	d2 := gocv.NewMat()
	defer d2.Close()
	gocv.Add(sigma1Sq, sigma2Sq, &d2)
	d2.AddFloat(ssimC2)

	den := gocv.NewMat()
	defer den.Close()
	gocv.Multiply(d1, d2, &den)

	ssimMap := gocv.NewMat()
	gocv.Divide(num, den, &ssimMap)

	score := ssimMap.Mean().Val1
	return score, ssimMap
}

// blurF applies the SSIM Gaussian window to a float Mat.
func blurF(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, ssimWindow, ssimSigma, ssimSigma, gocv.BorderDefault)
	return dst
}

// varianceTerm computes blur(a*b) - meanProduct.
func varianceTerm(a, b, meanProduct gocv.Mat) gocv.Mat {
	prod := gocv.NewMat()
	defer prod.Close()
	gocv.Multiply(a, b, &prod)

	blurred := blurF(prod)
	defer blurred.Close()

	out := gocv.NewMat()
	gocv.Subtract(blurred, meanProduct, &out)
	return out
}
