package chunker

// Golden chunk start offsets for the two scanner regression sources.
// These vectors pin the exact boundary placement of the archive format,
// including the rolling-hash table derivation; a change that moves any
// of them means existing archives no longer match their sources.

var smallMinChunkOffsets = []uint64{
	0, 11, 28, 43, 80, 89, 135, 157, 177, 197,
	200, 214, 227, 235, 267, 284, 299, 336, 345, 391,
	413, 433, 453, 456, 470, 483, 491, 523, 540, 555,
	592, 601, 647, 669, 689, 709, 712, 726, 739, 747,
	779, 796, 811, 848, 857, 903, 925, 945, 965, 968,
	982, 995, 1003, 1035, 1052, 1067, 1104, 1113, 1159, 1181,
	1201, 1221, 1224, 1238, 1251, 1259, 1291, 1308, 1323, 1360,
	1369, 1415, 1437, 1457, 1477, 1480, 1494, 1507, 1515, 1547,
	1564, 1579, 1616, 1625, 1671, 1693, 1713, 1733, 1736, 1750,
	1763, 1771, 1803, 1820, 1835, 1872, 1881, 1927, 1949, 1969,
	1989, 1992, 2006, 2019, 2027, 2059, 2076, 2091, 2128, 2137,
	2183, 2205, 2225, 2245, 2248, 2262, 2275, 2283, 2315, 2332,
	2347, 2384, 2393, 2439, 2461, 2481, 2501, 2504, 2518, 2531,
	2539, 2571, 2588, 2603, 2640, 2649, 2695, 2717, 2737, 2757,
	2760, 2774, 2787, 2795, 2827, 2844, 2859, 2896, 2905, 2951,
	2973, 2993, 3013, 3016, 3030, 3043, 3051, 3083, 3100, 3115,
	3152, 3161, 3207, 3229, 3249, 3269, 3272, 3286, 3299, 3307,
	3339, 3356, 3371, 3408, 3417, 3463, 3485, 3505, 3525, 3528,
	3542, 3555, 3563, 3595, 3612, 3627, 3664, 3673, 3719, 3741,
	3761, 3781, 3784, 3798, 3811, 3819, 3851, 3868, 3883, 3920,
	3929, 3975, 3997, 4017, 4037, 4040, 4054, 4067, 4075, 4107,
	4124, 4139, 4176, 4185, 4231, 4253, 4273, 4293, 4296, 4310,
	4323, 4331, 4363, 4380, 4395, 4432, 4441, 4487, 4509, 4529,
	4549, 4552, 4566, 4579, 4587, 4619, 4636, 4651, 4688, 4697,
	4743, 4765, 4785, 4805, 4808, 4822, 4835, 4843, 4875, 4892,
	4907, 4944, 4953, 4999, 5021, 5041, 5061, 5064, 5078, 5091,
	5099, 5131, 5148, 5163, 5200, 5209, 5255, 5277, 5297, 5317,
	5320, 5334, 5347, 5355, 5387, 5404, 5419, 5456, 5465, 5511,
	5533, 5553, 5573, 5576, 5590, 5603, 5611, 5643, 5660, 5675,
	5712, 5721, 5767, 5789, 5809, 5829, 5832, 5846, 5859, 5867,
	5899, 5916, 5931, 5968, 5977, 6023, 6045, 6065, 6085, 6088,
	6102, 6115, 6123, 6155, 6172, 6187, 6224, 6233, 6279, 6301,
	6321, 6341, 6344, 6358, 6371, 6379, 6411, 6428, 6443, 6480,
	6489, 6535, 6557, 6577, 6597, 6600, 6614, 6627, 6635, 6667,
	6684, 6699, 6736, 6745, 6791, 6813, 6833, 6853, 6856, 6870,
	6883, 6891, 6923, 6940, 6955, 6992, 7001, 7047, 7069, 7089,
	7109, 7112, 7126, 7139, 7147, 7179, 7196, 7211, 7248, 7257,
	7303, 7325, 7345, 7365, 7368, 7382, 7395, 7403, 7435, 7452,
	7467, 7504, 7513, 7559, 7581, 7601, 7621, 7624, 7638, 7651,
	7659, 7691, 7708, 7723, 7760, 7769, 7815, 7837, 7857, 7877,
	7880, 7894, 7907, 7915, 7947, 7964, 7979, 8016, 8025, 8071,
	8093, 8113, 8133, 8136, 8150, 8163, 8171, 8203, 8220, 8235,
	8272, 8281, 8327, 8349, 8369, 8389, 8392, 8406, 8419, 8427,
	8459, 8476, 8491, 8528, 8537, 8583, 8605, 8625, 8645, 8648,
	8662, 8675, 8683, 8715, 8732, 8747, 8784, 8793, 8839, 8861,
	8881, 8901, 8904, 8918, 8931, 8939, 8971, 8988, 9003, 9040,
	9049, 9095, 9117, 9137, 9157, 9160, 9174, 9187, 9195, 9227,
	9244, 9259, 9296, 9305, 9351, 9373, 9393, 9413, 9416, 9430,
	9443, 9451, 9483, 9500, 9515, 9552, 9561, 9607, 9629, 9649,
	9669, 9672, 9686, 9699, 9707, 9739, 9756, 9771, 9808, 9817,
	9863, 9885, 9905, 9925, 9928, 9942, 9955, 9963, 9995,
}

var biggerMinChunkOffsets = []uint64{
	0, 265, 521, 777, 1033, 1289, 1545, 1801, 2057, 2313,
	2569, 2825, 3081, 3337, 3593, 3849, 4105, 4361, 4617, 4873,
	5129, 5385, 5641, 5897, 6153, 6409, 6665, 6921, 7177, 7433,
	7689, 7945, 8201, 8457, 8713, 8969, 9225, 9481, 9737, 9993,
	10249, 10505, 10761, 11017, 11273, 11529, 11785, 12041, 12297, 12553,
	12809, 13065, 13321, 13577, 13833, 14089, 14345, 14601, 14857, 15113,
	15369, 15625, 15881, 16137, 16393, 16649, 16905, 17161, 17417, 17673,
	17929, 18185, 18441, 18697, 18953, 19209, 19465, 19721, 19977, 20233,
	20489, 20745, 21001, 21257, 21513, 21769, 22025, 22281, 22537, 22793,
	23049, 23305, 23561, 23817, 24073, 24329, 24585, 24841, 25097, 25353,
	25609, 25865, 26121, 26377, 26633, 26889, 27145, 27401, 27657, 27913,
	28169, 28425, 28681, 28937, 29193, 29449, 29705, 29961, 30217, 30473,
	30729, 30985, 31241, 31497, 31753, 32009, 32265, 32521, 32777, 33033,
	33289, 33545, 33801, 34057, 34313, 34569, 34825, 35081, 35337, 35593,
	35849, 36105, 36361, 36617, 36873, 37129, 37385, 37641, 37897, 38153,
	38409, 38665, 38921, 39177, 39433, 39689, 39945, 40201, 40457, 40713,
	40969, 41225, 41481, 41737, 41993, 42249, 42505, 42761, 43017, 43273,
	43529, 43785, 44041, 44297, 44553, 44809, 45065, 45321, 45577, 45833,
	46089, 46345, 46601, 46857, 47113, 47369, 47625, 47881, 48137, 48393,
	48649, 48905, 49161, 49417, 49673, 49929, 50185, 50441, 50697, 50953,
	51209, 51465, 51721, 51977, 52233, 52489, 52745, 53001, 53257, 53513,
	53769, 54025, 54281, 54537, 54793, 55049, 55305, 55561, 55817, 56073,
	56329, 56585, 56841, 57097, 57353, 57609, 57865, 58121, 58377, 58633,
	58889, 59145, 59401, 59657, 59913, 60169, 60425, 60681, 60937, 61193,
	61449, 61705, 61961, 62217, 62473, 62729, 62985, 63241, 63497, 63753,
	64009, 64265, 64521, 64777, 65033, 65289, 65545, 65801, 66057, 66313,
	66569, 66825, 67081, 67337, 67593, 67849, 68105, 68361, 68617, 68873,
	69129, 69385, 69641, 69897, 70153, 70409, 70665, 70921, 71177, 71433,
	71689, 71945, 72201, 72457, 72713, 72969, 73225, 73481, 73737, 73993,
	74249, 74505, 74761, 75017, 75273, 75529, 75785, 76041, 76297, 76553,
	76809, 77065, 77321, 77577, 77833, 78089, 78345, 78601, 78857, 79113,
	79369, 79625, 79881, 80137, 80393, 80649, 80905, 81161, 81417, 81673,
	81929, 82185, 82441, 82697, 82953, 83209, 83465, 83721, 83977, 84233,
	84489, 84745, 85001, 85257, 85513, 85769, 86025, 86281, 86537, 86793,
	87049, 87305, 87561, 87817, 88073, 88329, 88585, 88841, 89097, 89353,
	89609, 89865, 90121, 90377, 90633, 90889, 91145, 91401, 91657, 91913,
	92169, 92425, 92681, 92937, 93193, 93449, 93705, 93961, 94217, 94473,
	94729, 94985, 95241, 95497, 95753, 96009, 96265, 96521, 96777, 97033,
	97289, 97545, 97801, 98057, 98313, 98569, 98825, 99081, 99337, 99593,
	99849,
}
